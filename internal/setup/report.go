package setup

import "fmt"

// State is the progress of one tool through a run.
type State int

const (
	NotStarted State = iota
	CacheResolving
	Installing
	Installed
	AlreadyInstalled
	Failed
)

func (s State) String() string {
	switch s {
	case NotStarted:
		return "not started"
	case CacheResolving:
		return "resolving artifact"
	case Installing:
		return "installing"
	case Installed:
		return "installed"
	case AlreadyInstalled:
		return "already installed"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Result is the outcome for one selected tool. Stage records the state a
// failed tool was in when it failed.
type Result struct {
	Tool  string
	State State
	Stage State
	Err   error
}

// Report collects per-tool results in manifest order.
type Report struct {
	Results []Result
	// Registered is true when the search path was updated by this run.
	Registered bool
}

func (r *Report) add(res Result) {
	r.Results = append(r.Results, res)
}

// Count returns how many results are in state s.
func (r *Report) Count(s State) int {
	n := 0
	for _, res := range r.Results {
		if res.State == s {
			n++
		}
	}
	return n
}

// Failures returns the failed results.
func (r *Report) Failures() []Result {
	var out []Result
	for _, res := range r.Results {
		if res.State == Failed {
			out = append(out, res)
		}
	}
	return out
}

// Lookup returns the result for tool.
func (r *Report) Lookup(tool string) (Result, bool) {
	for _, res := range r.Results {
		if res.Tool == tool {
			return res, true
		}
	}
	return Result{}, false
}
