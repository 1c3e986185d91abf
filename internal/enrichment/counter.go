package enrichment

import (
	"context"

	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/pkg/instantly"
)

// VendorCounter counts leads through the vendor's list endpoint.
type VendorCounter struct {
	Client instantly.Client
}

// countPageSize is the most leads the vendor returns per page.
const countPageSize = 100

// CountLeads implements LeadCounter. It pages through the target until
// limit leads are counted or the vendor reports no further page.
func (v VendorCounter) CountLeads(ctx context.Context, target Target, limit int) (int, error) {
	var req instantly.ListLeadsRequest
	if target.Type == model.ResourceCampaign {
		req.CampaignID = target.ResourceID
	} else {
		req.ListID = target.ResourceID
	}
	limit = max(limit, 1)

	count := 0
	for count < limit {
		req.Limit = min(countPageSize, limit-count)
		page, err := v.Client.ListLeads(ctx, req)
		if err != nil {
			return 0, err
		}
		count += len(page.Items)
		if page.Next == "" || len(page.Items) == 0 {
			break
		}
		req.StartingAfter = page.Next
	}
	return min(count, limit), nil
}

// VendorJobCheck adapts a vendor background job to WaitJob.
func VendorJobCheck(client instantly.Client, jobID string) func(ctx context.Context) (JobStatus, error) {
	return func(ctx context.Context) (JobStatus, error) {
		job, err := client.GetBackgroundJob(ctx, jobID)
		if err != nil {
			return JobRunning, err
		}
		switch {
		case job.Done():
			return JobDone, nil
		case job.Failed():
			return JobFailed, nil
		default:
			return JobRunning, nil
		}
	}
}
