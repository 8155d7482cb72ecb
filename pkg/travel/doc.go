/*
Package travel is the airline customer-support domain: a primary assistant and
four specialists for flights, hotels, car rentals and excursions, backed by an
embedded SQLite database and a policy FAQ.

# Toolsets

Every specialist declares its actions as an enum with a dispatch table indexed
by kind. Searches are safe. Bookings, changes and cancellations are sensitive
and go through the approval gate.

# Usage

	db, _ := travel.Open("data/travel.db")
	_ = db.Seed(ctx, time.Now())
	policies, _ := travel.NewPolicyIndex(ctx)
	svc := travel.NewService(db, policies)

	eng, _ := handoff.New(model, svc.Dispatcher(), svc.Handlers(),
		handoff.WithContextFetcher(svc))
*/
package travel
