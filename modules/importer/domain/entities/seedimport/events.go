package seedimport

// ProgressEvent is published at stage transitions and at bounded
// intervals while a stage runs. Subscribers treat it as informational.
type ProgressEvent struct {
	Import *Import
}

type CreatedEvent struct {
	Import *Import
}
