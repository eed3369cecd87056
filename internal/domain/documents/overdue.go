package documents

import (
	"context"
	"fmt"
	"time"

	"facturo/internal/core/apperror"
	"facturo/internal/core/tenant"
	"facturo/pkg/logger"
)

// SystemUser is recorded as the author of changes made by background jobs.
const SystemUser = "system"

const overdueBatchSize = 500

// MarkOverdue moves sent documents whose due date is before now to overdue.
// Each document changes in its own transaction so one failure does not block
// the rest. It returns how many documents were moved.
func (s *Service) MarkOverdue(ctx context.Context, now time.Time) (int, error) {
	refs, err := s.repo.FindOverdue(ctx, KindsAllowing(StatusOverdue), now, overdueBatchSize)
	if err != nil {
		return 0, fmt.Errorf("find overdue: %w", err)
	}

	marked := 0
	for _, ref := range refs {
		tc := tenant.New(ref.CompanyID, SystemUser, tenant.RoleAdmin)
		if _, err := s.ChangeStatus(tenant.WithTenant(ctx, tc), tc, ref.ID, StatusOverdue); err != nil {
			// paid or cancelled since the scan
			if apperror.HasCode(err, apperror.CodeInvalidStatusTransition) {
				continue
			}
			logger.Warn(ctx, "mark overdue failed", "id", ref.ID, "company_id", ref.CompanyID, "error", err)
			continue
		}
		marked++
	}

	if marked > 0 {
		logger.Info(ctx, "documents marked overdue", "count", marked)
	}
	return marked, nil
}
