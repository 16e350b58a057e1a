package maintenance

import "fmt"

// ResultLog is the append-only audit trail of a maintenance run. Every
// step appends exactly one line regardless of outcome, and the whole log
// is replayed in order when the run finishes.
type ResultLog struct {
	entries []string
}

func NewResultLog() *ResultLog {
	return &ResultLog{}
}

func (r *ResultLog) Appendf(format string, args ...any) string {
	msg := fmt.Sprintf(format, args...)
	r.entries = append(r.entries, msg)
	return msg
}

func (r *ResultLog) Entries() []string {
	return r.entries
}
