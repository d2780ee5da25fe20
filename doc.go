/*
Package stepbnb turns a blocking branch-and-bound solve into a step-by-step decision process.

A branch-and-bound engine runs its whole search inside one call and only consults
user logic through callbacks. stepbnb inverts that control: the engine runs on a
worker goroutine and, whenever it reaches a decision point, it parks and hands the
decision to the caller. The caller inspects the open nodes, picks one, and the engine
carries on until its next decision point.

# Concept

An Env owns one engine per episode. Reset builds a fresh engine through a Factory
and runs it to its first node selection; Step answers the pending selection with a
node id (or none) and runs to the next one. Each transition carries the action set
(the ids of the open leaves, children and siblings) and an observation extracted
from the paused engine.

The lower layers are usable on their own: pkg/session drives arbitrary callback
kinds, pkg/dynamics holds the node selection, branching and primal search loops, and
pkg/adapters/knapsack is a complete in-process engine.

# Usage

	package main

	import (
		"context"
		"log"

		"github.com/aretw0/stepbnb"
		"github.com/aretw0/stepbnb/pkg/adapters/knapsack"
		"github.com/aretw0/stepbnb/pkg/domain"
		"github.com/aretw0/stepbnb/pkg/observation"
		"github.com/aretw0/stepbnb/pkg/ports"
	)

	func main() {
		factory := func(ctx context.Context) (ports.Engine, error) {
			e, err := knapsack.NewWithInstance(knapsack.Generate(1, 20))
			if err != nil {
				return nil, err
			}
			return e, nil
		}
		env := stepbnb.New[domain.FocusNodeInfo](factory, observation.FocusNode{})
		defer env.Close()

		ctx := context.Background()
		tr, err := env.Reset(ctx)
		for err == nil && !tr.Done {
			// Always dive into the first offered node.
			choice := tr.ActionSet.All()[0]
			tr, err = env.Step(ctx, &choice)
		}
		if err != nil {
			log.Fatal(err)
		}
	}
*/
package stepbnb
