// Package work defines the unit of work a supervisor runs every cycle and
// the building blocks for composing one.
//
// A Unit reports success by returning nil and failure by returning an error.
// Units built with Sequence run their steps strictly in order and stop at the
// first failing step; the failure is returned as an *Error that records which
// step failed, a classification Kind and the stack where it happened:
//
//	unit := work.Sequence(
//	    work.Delay("calculate", time.Second),
//	    work.HTTPCall("dependency", "https://api.example.com/status",
//	        work.WithTimeout(5*time.Second),
//	    ),
//	)
//
//	if err := unit.Execute(ctx); err != nil {
//	    var werr *work.Error
//	    if errors.As(err, &werr) {
//	        log.Error("step failed", "step", werr.Step, "kind", werr.Kind)
//	    }
//	}
//
// Steps are never retried here. A failed cycle is simply a failed cycle; the
// next scheduled cycle starts fresh.
package work
