package types

// Verdict is the tri-state outcome of static validation
type Verdict int

// NotAttempted arises only when validation is explicitly bypassed
const (
	VerdictNotAttempted Verdict = iota
	VerdictPassed
	VerdictFailed
)

func (v Verdict) String() string {
	switch v {
	case VerdictNotAttempted:
		return "NotAttempted"
	case VerdictPassed:
		return "Passed"
	case VerdictFailed:
		return "Failed"
	default:
		return "Invalid"
	}
}

// MarshalText lets the verdict appear by name in reports
func (v Verdict) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}
