/*
Package kafka carries the approval gate over Kafka topics.

A Notifier publishes every batch suspended at the gate to the requests topic.
Some other system (a back-office queue, an on-call bot) decides, and writes
the decision to the decisions topic, where a Consumer applies it through
Engine.Resume.

# Messages

Requests, keyed by thread ID so a thread's requests stay ordered:

	{"thread_id": "t1", "handler": "hotel", "proposals": [...], "requested_at": "..."}

Decisions:

	{"thread_id": "t1", "approve": false, "reason": "over budget"}
*/
package kafka
