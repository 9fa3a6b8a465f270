package ctdf

// Intent is a dispatcher command already resolved into one of a closed set of structured actions
type Intent struct {
	Action     IntentAction
	Parameters IntentParameters
}

type IntentAction string

const (
	IntentActionCreateIncident IntentAction = "CREATE_INCIDENT"
	IntentActionDelayTrain     IntentAction = "DELAY_TRAIN"
	IntentActionBlockSection   IntentAction = "BLOCK_SECTION"
	IntentActionOptimize       IntentAction = "OPTIMIZE"
)

type IntentParameters struct {
	IncidentType IncidentType
	LocationRef  string
	Severity     Severity
	Description  string

	TrainRef     string
	DelayMinutes float64

	SectionRef string

	Objectives *ObjectiveWeights
}

type IntentResult struct {
	Action  IntentAction
	Message string

	IncidentRef string
	RunRef      string
}
