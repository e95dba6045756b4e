package services

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/verdantlabs/seedbank/modules/importer/domain/entities/seedimport"
	"github.com/verdantlabs/seedbank/pkg/composables"
	"github.com/verdantlabs/seedbank/pkg/jobqueue"
)

// NewDeadJobHandler settles an import whose stage job exhausted its
// retry budget. Stage handlers record their own failure, but a handler
// that dies before the status update commits (crash, dispatch timeout)
// leaves the import stuck in a running state with no job to move it.
func NewDeadJobHandler(imports seedimport.Repository, log *logrus.Logger) jobqueue.DeadFunc {
	return func(ctx context.Context, job jobqueue.DispatchedJob, lastError string) {
		importID, err := DecodeJobPayload(job.Payload)
		if err != nil {
			log.WithError(err).WithField("topic", job.Meta.Topic).Warn("dead stage job carries an unreadable payload")
			return
		}
		err = composables.InTx(ctx, func(txCtx context.Context) error {
			imp, err := imports.GetByID(txCtx, importID)
			if err != nil {
				return err
			}
			if !imp.Status.Running() {
				return nil
			}
			message := fmt.Sprintf("%s gave up after %d attempts: %s", job.Meta.Topic, job.Meta.Attempts, lastError)
			return imports.SetFailed(txCtx, importID, message)
		})
		if err != nil {
			log.WithError(err).WithField("import_id", importID).Error("failed to mark import failed after dead stage job")
		}
	}
}
