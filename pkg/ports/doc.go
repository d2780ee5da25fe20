/*
Package ports defines the driven ports (interfaces) around the branch-and-bound engine.

These interfaces decouple the stepping machinery from any concrete solver, allowing
the same coroutine bridge to drive an in-process engine, a native binding or a test double.

# Key Interfaces

  - Engine: The blocking solver with extension registration, tree queries and interruption.
  - Branchrule, Heuristic, NodeSelector: Extension points the engine invokes during a run.
  - Locker: Provides cross-process exclusion for the non-reentrant engine copy.
  - TraceStore: Persists the decisions taken during an episode.
*/
package ports
