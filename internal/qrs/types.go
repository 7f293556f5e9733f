package qrs

// State is the segmentation state of a beat record.
type State int

const (
	StateInvalid State = iota
	StateThresholdCrossed
	StateRFound
	StateFinished
	StateProcessed
)

var stateNames = [...]string{"INVALID", "THRESHOLD_CROSSED", "R_FOUND", "FINISHED", "PROCESSED"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "UNDEFINED"
	}
	return stateNames[s]
}

// Class is the morphology classification of a beat.
type Class int

const (
	ClassInvalid Class = iota
	ClassUnknown
	ClassNormal
	ClassPVC
	ClassPVCAberrant
	ClassAPC
	ClassAPCAberrant
	ClassAberrant
	ClassBBBlock
)

var classNames = [...]string{
	"INVALID", "UNKNOWN", "NORMAL", "PVC", "PVC_ABERRANT",
	"APC", "APC_ABERRANT", "ABERRANT", "BB_BLOCK",
}

func (c Class) String() string {
	if c < 0 || int(c) >= len(classNames) {
		return "UNDEFINED"
	}
	return classNames[c]
}

func (c Class) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

// Classified reports whether c came out of the template classifier.
func (c Class) Classified() bool { return c != ClassInvalid && c != ClassUnknown }

// Arrhythmia flags timing or artifact anomalies independent of morphology.
type Arrhythmia int

const (
	ArrhythmiaNone Arrhythmia = iota
	ArrhythmiaArtifact
	ArrhythmiaAVBlock
	ArrhythmiaFusion
	ArrhythmiaEscape
	ArrhythmiaPremature
	ArrhythmiaCardiacArrest
)

var arrhythmiaNames = [...]string{
	"NONE", "ARTIFACT", "AV_BLOCK", "FUSION", "ESCAPE", "PREMATURE", "CARDIAC_ARREST",
}

func (a Arrhythmia) String() string {
	if a < 0 || int(a) >= len(arrhythmiaNames) {
		return "UNDEFINED"
	}
	return arrhythmiaNames[a]
}

func (a Arrhythmia) MarshalText() ([]byte, error) { return []byte(a.String()), nil }
