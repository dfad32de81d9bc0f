package core

// Severity orders notifications for presentation, e.g. the colour of a bell icon.
type Severity int

const (
	SeverityNone Severity = iota
	// SeverityInfo is used for category limits; it does not colour the bell.
	SeverityInfo
	SeverityYellow
	SeverityOrange
	SeverityRed
)

func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityYellow:
		return "yellow"
	case SeverityOrange:
		return "orange"
	case SeverityRed:
		return "red"
	default:
		return "none"
	}
}

func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText accepts the names produced by String; unknown names are none.
func (s *Severity) UnmarshalText(b []byte) error {
	switch string(b) {
	case "info":
		*s = SeverityInfo
	case "yellow":
		*s = SeverityYellow
	case "orange":
		*s = SeverityOrange
	case "red":
		*s = SeverityRed
	default:
		*s = SeverityNone
	}
	return nil
}

// Notification is one derived alert. ID is stable across evaluations
// (balance-red, category-Food, ...) so presentation can key on it.
type Notification struct {
	ID       string   `json:"id"`
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
}

// HighestSeverity returns the most severe level present in ns.
func HighestSeverity(ns []Notification) Severity {
	max := SeverityNone
	for _, n := range ns {
		if n.Severity > max {
			max = n.Severity
		}
	}
	return max
}
