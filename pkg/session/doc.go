/*
Package session serializes access to conversation threads.

A thread's turns never interleave: the Manager holds a per-thread mutex for the
whole load-walk-save cycle and, when configured with a DistributedLocker,
a lease shared across replicas.

# Locks

Local locks are reference counted and removed once no caller holds or waits on
them, so the lock map does not grow with the number of threads ever seen.
*/
package session
