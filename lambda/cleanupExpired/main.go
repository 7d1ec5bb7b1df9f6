package main

import (
	"strings"

	"github.com/aws/aws-lambda-go/lambda"

	"personify"
	"personify/pkg/arguments"
	"personify/pkg/errors"
	"personify/pkg/logging"
)

// Event is the scheduled invocation payload. TenantIDs may instead come
// from the CLEANUP_TENANT_IDS environment variable as a comma-separated
// list.
type Event struct {
	TenantIDs []string `json:"tenant_ids"`
}

// Handler is exported for test
func Handler(args *arguments.Arguments, event Event) (map[string]*personify.CleanupReport, error) {
	tenantIDs := event.TenantIDs
	if len(tenantIDs) == 0 {
		for _, tenantID := range strings.Split(args.CleanupTenantIDs, ",") {
			if tenantID = strings.TrimSpace(tenantID); tenantID != "" {
				tenantIDs = append(tenantIDs, tenantID)
			}
		}
	}
	if len(tenantIDs) == 0 {
		return nil, errors.New("no tenants to clean up, set tenant_ids or CLEANUP_TENANT_IDS")
	}

	repoSvc, err := args.RepositoryService()
	if err != nil {
		return nil, err
	}

	reports := make(map[string]*personify.CleanupReport, len(tenantIDs))
	for _, tenantID := range tenantIDs {
		report, err := repoSvc.CleanupExpiredItems(tenantID)
		if err != nil {
			return nil, errors.Wrap(err, "Failed cleanup").With("tenant_id", tenantID)
		}
		reports[tenantID] = report

		logging.Logger.Info().
			Str("tenant_id", tenantID).
			Int("recommendations", report.Recommendations).
			Int("events", report.Events).
			Msg("Swept expired items")
	}

	return reports, nil
}

func main() {
	logging.Setup()
	lambda.Start(func(event Event) (map[string]*personify.CleanupReport, error) {
		return Handler(arguments.New(), event)
	})
}
