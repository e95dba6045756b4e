package services

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/verdantlabs/seedbank/modules/importer/domain/entities/seedimport"
	"github.com/verdantlabs/seedbank/pkg/jobqueue"
)

func deadJob(topic string, importID uint, attempts int) jobqueue.DispatchedJob {
	return jobqueue.DispatchedJob{
		Meta:    jobqueue.Meta{Table: JobsTable, Topic: topic, Attempts: attempts},
		Payload: encodeJobPayload(importID),
	}
}

func TestDeadJobHandler_FailsStuckImport(t *testing.T) {
	imports := newFakeImportRepo()
	imp := imports.add(&seedimport.Import{Status: seedimport.StatusMapping})
	handler := NewDeadJobHandler(imports, quietLogger())

	handler(testContext(), deadJob(TopicMap, imp.ID, 5), "dispatch timed out")

	assert.Equal(t, seedimport.StatusFailed, imp.Status)
	assert.Contains(t, imp.ErrorMessage, TopicMap)
	assert.Contains(t, imp.ErrorMessage, "dispatch timed out")
}

func TestDeadJobHandler_LeavesSettledImportAlone(t *testing.T) {
	imports := newFakeImportRepo()
	// The stage recorded its own failure before the final retry died.
	imp := imports.add(&seedimport.Import{
		Status:       seedimport.StatusFailed,
		ErrorMessage: "classification request failed",
	})
	handler := NewDeadJobHandler(imports, quietLogger())

	handler(testContext(), deadJob(TopicMap, imp.ID, 5), "dispatch timed out")

	assert.Equal(t, seedimport.StatusFailed, imp.Status)
	assert.Equal(t, "classification request failed", imp.ErrorMessage)
}

func TestDeadJobHandler_IgnoresMalformedPayload(t *testing.T) {
	imports := newFakeImportRepo()
	imp := imports.add(&seedimport.Import{Status: seedimport.StatusMapping})
	handler := NewDeadJobHandler(imports, quietLogger())

	handler(testContext(), jobqueue.DispatchedJob{
		Meta:    jobqueue.Meta{Table: JobsTable, Topic: TopicMap},
		Payload: []byte(`{`),
	}, "boom")

	assert.Equal(t, seedimport.StatusMapping, imp.Status)
}
