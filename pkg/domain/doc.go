/*
Package domain contains the core domain models shared by the stepping layer and the engines it drives.

It defines the records exchanged at every pause of a branch-and-bound run: the tagged call
records posted by reverse callbacks, the engine's outcome codes, node identities and the
selection slot used by node selection. This package is kept pure and free of external
dependencies like I/O or goroutines, following Hexagonal Architecture principles.

# Key Entities

  - Call: A tagged record describing where the engine paused (BranchruleCall, HeuristicCall, NodeselCall).
  - Result: The finite set of outcome codes the engine accepts back from an extension.
  - ActionSet: The open node ids (leaves, children, siblings) a controller may choose from.
  - SelectionSlot: The write-once cell through which a node selection reaches the engine.
  - Constructor: Registration parameters for each reverse callback kind.
*/
package domain
