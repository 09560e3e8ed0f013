package response

// IntentKind discriminates the two ways a well-formed request can be answered.
type IntentKind int

const (
	KindDefault IntentKind = iota
	KindProbe
)

func (k IntentKind) String() string {
	switch k {
	case KindProbe:
		return "probe"
	default:
		return "default"
	}
}

// Intent is decided once per request. Target is only meaningful for KindProbe.
type Intent struct {
	Kind   IntentKind
	Target string
}

// Default returns the greeting intent.
func Default() Intent {
	return Intent{Kind: KindDefault}
}

// Probe returns the intent to run the diagnostic probe against target.
func Probe(target string) Intent {
	return Intent{Kind: KindProbe, Target: target}
}

// Decide picks Probe when query carries key (even with an empty value) and
// Default otherwise. Other keys are ignored.
func Decide(query map[string]string, key string) Intent {
	if target, ok := query[key]; ok {
		return Probe(target)
	}
	return Default()
}
