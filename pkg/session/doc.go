/*
Package session owns one engine and at most one in-flight stepping run on it.

A run executes the engine's blocking Solve on a worker goroutine with reverse
callbacks registered. Every time the engine enters one of them the run pauses and
Start or Continue returns the posted call. The controller decides, answers with
Continue, and the engine proceeds until the next pause or the end of the search.

A Session is owned by one goroutine at a time. Stopping a run (explicitly, by
starting over after the run ended, by a canceled wait or by Close) interrupts the
engine and joins the worker before returning.

Duplicate copies the engine under a process-wide lock, optionally extended across
processes through a ports.Locker, because engine copies share native state that is
not safe to copy concurrently.
*/
package session
