package tracker

import (
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	ctest "github.com/teranos/concord/internal/testing"
	"github.com/teranos/concord/internal/util"
)

func TestNewUsageTracker(t *testing.T) {
	db := ctest.CreateMigratedTestDB(t)

	tracker := NewUsageTracker(db)

	if tracker == nil {
		t.Fatal("NewUsageTracker returned nil")
	}

	if tracker.db != db {
		t.Error("UsageTracker database not set correctly")
	}
}

func TestTrackUsage(t *testing.T) {
	db := ctest.CreateMigratedTestDB(t)

	tracker := NewUsageTracker(db)

	now := time.Now()
	responseTime := now.Add(2 * time.Second)
	tokens := 150
	cost := 0.05

	usage := &ModelUsage{
		OperationType:     "resolve",
		SourceType:        "userProfile",
		TargetType:        "authRecord",
		ModelName:         "openai/gpt-4o-mini",
		ModelProvider:     "openrouter",
		ModelConfig:       NewModelConfig(util.Ptr(0.2), util.Ptr(1000)),
		RequestTimestamp:  now,
		ResponseTimestamp: &responseTime,
		TokensUsed:        &tokens,
		Cost:              &cost,
		Success:           true,
		ErrorMessage:      nil,
		Metadata:          NewUsageMetadata(UsageMetadata{OperationDetail: "oracle fallback"}),
	}

	if err := tracker.TrackUsage(usage); err != nil {
		t.Fatalf("TrackUsage failed: %v", err)
	}

	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM oracle_usage").Scan(&count); err != nil {
		t.Fatalf("Failed to count records: %v", err)
	}

	if count != 1 {
		t.Errorf("Expected 1 record, got %d", count)
	}

	var stored ModelUsage
	row := db.QueryRow(`
		SELECT operation_type, source_type, target_type, model_name, model_provider,
		       tokens_used, cost, success
		FROM oracle_usage WHERE id = 1`)

	err := row.Scan(&stored.OperationType, &stored.SourceType, &stored.TargetType,
		&stored.ModelName, &stored.ModelProvider, &stored.TokensUsed,
		&stored.Cost, &stored.Success)
	if err != nil {
		t.Fatalf("Failed to retrieve stored usage: %v", err)
	}

	if stored.OperationType != "resolve" {
		t.Errorf("Expected operation_type 'resolve', got '%s'", stored.OperationType)
	}
	if stored.SourceType != "userProfile" || stored.TargetType != "authRecord" {
		t.Errorf("Expected module pair userProfile/authRecord, got '%s'/'%s'",
			stored.SourceType, stored.TargetType)
	}
	if stored.ModelName != "openai/gpt-4o-mini" {
		t.Errorf("Expected model_name 'openai/gpt-4o-mini', got '%s'", stored.ModelName)
	}
	if *stored.TokensUsed != 150 {
		t.Errorf("Expected tokens_used 150, got %d", *stored.TokensUsed)
	}
	if *stored.Cost != 0.05 {
		t.Errorf("Expected cost 0.05, got %f", *stored.Cost)
	}
	if !stored.Success {
		t.Error("Expected success to be true")
	}
}

func TestTrackUsageWithError(t *testing.T) {
	db := ctest.CreateMigratedTestDB(t)

	tracker := NewUsageTracker(db)

	now := time.Now()
	errorMsg := "API key invalid"

	usage := &ModelUsage{
		OperationType:    "similarity",
		ModelName:        "openai/gpt-4o-mini",
		ModelProvider:    "openrouter",
		RequestTimestamp: now,
		Success:          false,
		ErrorMessage:     &errorMsg,
	}

	if err := tracker.TrackUsage(usage); err != nil {
		t.Fatalf("TrackUsage failed: %v", err)
	}

	var storedSuccess bool
	var storedErrorMsg sql.NullString
	err := db.QueryRow("SELECT success, error_message FROM oracle_usage WHERE id = 1").
		Scan(&storedSuccess, &storedErrorMsg)
	if err != nil {
		t.Fatalf("Failed to retrieve error record: %v", err)
	}

	if storedSuccess {
		t.Error("Expected success to be false for error case")
	}
	if !storedErrorMsg.Valid || storedErrorMsg.String != "API key invalid" {
		t.Errorf("Expected error message 'API key invalid', got '%s'", storedErrorMsg.String)
	}
}

func TestGetUsageStats(t *testing.T) {
	db := ctest.CreateMigratedTestDB(t)

	tracker := NewUsageTracker(db)

	now := time.Now()
	oneHourAgo := now.Add(-1 * time.Hour)

	testUsages := []*ModelUsage{
		{
			OperationType:    "resolve",
			SourceType:       "userProfile",
			TargetType:       "authRecord",
			ModelName:        "openai/gpt-4o-mini",
			ModelProvider:    "openrouter",
			RequestTimestamp: oneHourAgo,
			TokensUsed:       util.Ptr(100),
			Cost:             util.Ptr(0.02),
			Success:          true,
		},
		{
			OperationType:    "similarity",
			ModelName:        "anthropic/claude-3-haiku",
			ModelProvider:    "openrouter",
			RequestTimestamp: oneHourAgo,
			TokensUsed:       util.Ptr(150),
			Cost:             util.Ptr(0.03),
			Success:          true,
		},
		{
			OperationType:    "resolve",
			SourceType:       "orderEvent",
			TargetType:       "ledgerEntry",
			ModelName:        "openai/gpt-4o-mini",
			ModelProvider:    "openrouter",
			RequestTimestamp: oneHourAgo,
			TokensUsed:       util.Ptr(0),
			Cost:             util.Ptr(0.0),
			Success:          false,
		},
	}

	for _, usage := range testUsages {
		if err := tracker.TrackUsage(usage); err != nil {
			t.Fatalf("Failed to insert test usage: %v", err)
		}
	}

	// Window covering all three records.
	twoHoursAgo := now.Add(-2 * time.Hour)
	stats, err := tracker.GetUsageStats(twoHoursAgo)
	if err != nil {
		t.Fatalf("GetUsageStats failed: %v", err)
	}

	if stats.TotalRequests != 3 {
		t.Errorf("Expected 3 total requests, got %d", stats.TotalRequests)
	}
	if stats.SuccessfulRequests != 2 {
		t.Errorf("Expected 2 successful requests, got %d", stats.SuccessfulRequests)
	}
	if stats.TotalTokens != 250 {
		t.Errorf("Expected 250 total tokens, got %d", stats.TotalTokens)
	}
	if stats.TotalCost != 0.05 {
		t.Errorf("Expected total cost 0.05, got %f", stats.TotalCost)
	}
	if stats.UniqueModels != 2 {
		t.Errorf("Expected 2 unique models, got %d", stats.UniqueModels)
	}

	expectedSuccessRate := float64(2) / float64(3)
	if util.AbsFloat64(stats.SuccessRate-expectedSuccessRate) > 0.001 {
		t.Errorf("Expected success rate %f, got %f", expectedSuccessRate, stats.SuccessRate)
	}

	// Window covering none of them.
	thirtyMinutesAgo := now.Add(-30 * time.Minute)
	recentStats, err := tracker.GetUsageStats(thirtyMinutesAgo)
	if err != nil {
		t.Fatalf("GetUsageStats for recent period failed: %v", err)
	}

	if recentStats.TotalRequests != 0 {
		t.Errorf("Expected 0 recent requests, got %d", recentStats.TotalRequests)
	}
	if recentStats.TotalTokens != 0 {
		t.Errorf("Expected 0 recent tokens, got %d", recentStats.TotalTokens)
	}
	if recentStats.TotalCost != 0 {
		t.Errorf("Expected 0 recent cost, got %f", recentStats.TotalCost)
	}
	if recentStats.SuccessRate != 0 {
		t.Errorf("Expected 0 success rate with no requests, got %f", recentStats.SuccessRate)
	}
}

func TestGetModelBreakdown(t *testing.T) {
	db := ctest.CreateMigratedTestDB(t)

	tracker := NewUsageTracker(db)

	now := time.Now()
	oneHourAgo := now.Add(-1 * time.Hour)
	responseTime := oneHourAgo.Add(2 * time.Second)

	testUsages := []*ModelUsage{
		{
			OperationType:     "resolve",
			SourceType:        "userProfile",
			TargetType:        "authRecord",
			ModelName:         "openai/gpt-4o-mini",
			ModelProvider:     "openrouter",
			RequestTimestamp:  oneHourAgo,
			ResponseTimestamp: &responseTime,
			TokensUsed:        util.Ptr(100),
			Cost:              util.Ptr(0.02),
			Success:           true,
		},
		{
			OperationType:     "resolve",
			SourceType:        "orderEvent",
			TargetType:        "ledgerEntry",
			ModelName:         "openai/gpt-4o-mini",
			ModelProvider:     "openrouter",
			RequestTimestamp:  oneHourAgo,
			ResponseTimestamp: &responseTime,
			TokensUsed:        util.Ptr(200),
			Cost:              util.Ptr(0.04),
			Success:           true,
		},
		{
			OperationType:     "similarity",
			ModelName:         "anthropic/claude-3-haiku",
			ModelProvider:     "openrouter",
			RequestTimestamp:  oneHourAgo,
			ResponseTimestamp: &responseTime,
			TokensUsed:        util.Ptr(150),
			Cost:              util.Ptr(0.03),
			Success:           true,
		},
	}

	for _, usage := range testUsages {
		if err := tracker.TrackUsage(usage); err != nil {
			t.Fatalf("Failed to insert test usage: %v", err)
		}
	}

	twoHoursAgo := now.Add(-2 * time.Hour)
	breakdown, err := tracker.GetModelBreakdown(twoHoursAgo)
	if err != nil {
		t.Fatalf("GetModelBreakdown failed: %v", err)
	}

	if len(breakdown) != 2 {
		t.Fatalf("Expected 2 models in breakdown, got %d", len(breakdown))
	}

	// Ordered by total cost, so gpt-4o-mini (0.06) comes first.
	gpt := breakdown[0]
	if gpt.ModelName != "openai/gpt-4o-mini" {
		t.Fatalf("Expected openai/gpt-4o-mini first, got %s", gpt.ModelName)
	}
	if gpt.RequestCount != 2 {
		t.Errorf("Expected 2 requests for gpt-4o-mini, got %d", gpt.RequestCount)
	}
	if gpt.TotalTokens != 300 {
		t.Errorf("Expected 300 total tokens for gpt-4o-mini, got %d", gpt.TotalTokens)
	}
	if gpt.TotalCost != 0.06 {
		t.Errorf("Expected total cost 0.06 for gpt-4o-mini, got %f", gpt.TotalCost)
	}
	if gpt.AvgResponseTimeMs == nil {
		t.Error("Expected non-nil avg response time")
	} else if util.AbsFloat64(*gpt.AvgResponseTimeMs-2000) > 1 {
		t.Errorf("Expected avg response time ~2000ms, got %f", *gpt.AvgResponseTimeMs)
	}
}

func TestGetTimeSeriesData(t *testing.T) {
	db := ctest.CreateMigratedTestDB(t)

	tracker := NewUsageTracker(db)

	now := time.Now()

	for _, cost := range []float64{0.02, 0.03} {
		usage := &ModelUsage{
			OperationType:    "resolve",
			SourceType:       "userProfile",
			TargetType:       "authRecord",
			ModelName:        "openai/gpt-4o-mini",
			ModelProvider:    "openrouter",
			RequestTimestamp: now,
			Cost:             util.Ptr(cost),
			Success:          true,
		}
		if err := tracker.TrackUsage(usage); err != nil {
			t.Fatalf("Failed to insert test usage: %v", err)
		}
	}

	points, err := tracker.GetTimeSeriesData(7)
	if err != nil {
		t.Fatalf("GetTimeSeriesData failed: %v", err)
	}

	if len(points) != 1 {
		t.Fatalf("Expected 1 daily point, got %d", len(points))
	}
	if points[0].Requests != 2 {
		t.Errorf("Expected 2 requests in point, got %d", points[0].Requests)
	}
	if util.AbsFloat64(points[0].Cost-0.05) > 0.0001 {
		t.Errorf("Expected cost 0.05 in point, got %f", points[0].Cost)
	}
}

func TestNewModelConfig(t *testing.T) {
	config := NewModelConfig(util.Ptr(0.7), util.Ptr(1000))

	if config == nil {
		t.Fatal("NewModelConfig returned nil")
	}
	if *config == "" {
		t.Error("Expected non-empty config string")
	}

	nilConfig := NewModelConfig(nil, nil)
	if nilConfig != nil {
		t.Error("Expected nil config for nil parameters")
	}

	tempOnlyConfig := NewModelConfig(util.Ptr(0.7), nil)
	if tempOnlyConfig == nil {
		t.Error("Expected non-nil config with temperature only")
	}
}

func TestNewUsageMetadata(t *testing.T) {
	metadata := UsageMetadata{
		SessionID:       "session-1",
		OperationDetail: "pattern replay",
		InputLength:     util.Ptr(100),
		OutputLength:    util.Ptr(50),
	}

	metadataStr := NewUsageMetadata(metadata)

	if metadataStr == nil {
		t.Fatal("NewUsageMetadata returned nil")
	}
	if *metadataStr == "" {
		t.Error("Expected non-empty metadata string")
	}
}

// --- Sqlmock Tests ---
// Verify SQL structure and argument wiring without a real database.

func TestTrackUsage_Sqlmock(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create sqlmock: %v", err)
	}
	defer db.Close()

	tracker := NewUsageTracker(db)

	now := time.Now()
	tokens := 100
	cost := 0.02

	usage := &ModelUsage{
		OperationType:    "resolve",
		SourceType:       "userProfile",
		TargetType:       "authRecord",
		ModelName:        "openai/gpt-4o-mini",
		ModelProvider:    "openrouter",
		RequestTimestamp: now,
		TokensUsed:       &tokens,
		Cost:             &cost,
		Success:          true,
	}

	mock.ExpectExec(`INSERT INTO oracle_usage`).
		WithArgs(
			usage.OperationType,
			usage.SourceType,
			usage.TargetType,
			usage.ModelName,
			usage.ModelProvider,
			sqlmock.AnyArg(), // model_config
			usage.RequestTimestamp,
			sqlmock.AnyArg(), // response_timestamp
			usage.TokensUsed,
			usage.Cost,
			usage.Success,
			sqlmock.AnyArg(), // error_message
			sqlmock.AnyArg(), // metadata
		).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := tracker.TrackUsage(usage); err != nil {
		t.Errorf("TrackUsage failed: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unfulfilled expectations: %v", err)
	}
}

func TestTrackUsageWithError_Sqlmock(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create sqlmock: %v", err)
	}
	defer db.Close()

	tracker := NewUsageTracker(db)

	now := time.Now()
	errorMsg := "API rate limit exceeded"

	usage := &ModelUsage{
		OperationType:    "similarity",
		ModelName:        "anthropic/claude-3-haiku",
		ModelProvider:    "openrouter",
		RequestTimestamp: now,
		Success:          false,
		ErrorMessage:     &errorMsg,
	}

	mock.ExpectExec(`INSERT INTO oracle_usage`).
		WithArgs(
			usage.OperationType,
			"", // source_type
			"", // target_type
			usage.ModelName,
			usage.ModelProvider,
			sqlmock.AnyArg(), // model_config (nil)
			usage.RequestTimestamp,
			sqlmock.AnyArg(), // response_timestamp (nil)
			sqlmock.AnyArg(), // tokens_used (nil)
			sqlmock.AnyArg(), // cost (nil)
			false,            // success
			&errorMsg,        // error_message
			sqlmock.AnyArg(), // metadata (nil)
		).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := tracker.TrackUsage(usage); err != nil {
		t.Errorf("TrackUsage failed: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unfulfilled expectations: %v", err)
	}
}

func TestGetUsageStats_Sqlmock(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create sqlmock: %v", err)
	}
	defer db.Close()

	tracker := NewUsageTracker(db)

	since := time.Now().Add(-1 * time.Hour)

	rows := sqlmock.NewRows([]string{
		"total_requests",
		"successful_requests",
		"total_tokens",
		"total_cost",
		"unique_models",
	}).AddRow(10, 8, 1500, 0.50, 3)

	mock.ExpectQuery(`SELECT.*FROM oracle_usage WHERE request_timestamp`).
		WithArgs(since).
		WillReturnRows(rows)

	stats, err := tracker.GetUsageStats(since)
	if err != nil {
		t.Fatalf("GetUsageStats failed: %v", err)
	}

	if stats.TotalRequests != 10 {
		t.Errorf("Expected 10 total requests, got %d", stats.TotalRequests)
	}
	if stats.SuccessfulRequests != 8 {
		t.Errorf("Expected 8 successful requests, got %d", stats.SuccessfulRequests)
	}
	if stats.TotalTokens != 1500 {
		t.Errorf("Expected 1500 total tokens, got %d", stats.TotalTokens)
	}
	if stats.TotalCost != 0.50 {
		t.Errorf("Expected 0.50 total cost, got %f", stats.TotalCost)
	}
	if stats.UniqueModels != 3 {
		t.Errorf("Expected 3 unique models, got %d", stats.UniqueModels)
	}

	expectedSuccessRate := float64(8) / float64(10)
	if util.AbsFloat64(stats.SuccessRate-expectedSuccessRate) > 0.001 {
		t.Errorf("Expected success rate %f, got %f", expectedSuccessRate, stats.SuccessRate)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unfulfilled expectations: %v", err)
	}
}

func TestGetModelBreakdown_Sqlmock(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create sqlmock: %v", err)
	}
	defer db.Close()

	tracker := NewUsageTracker(db)

	since := time.Now().Add(-2 * time.Hour)

	rows := sqlmock.NewRows([]string{
		"model_name",
		"model_provider",
		"request_count",
		"total_tokens",
		"total_cost",
		"avg_response_time_ms",
	}).
		AddRow("openai/gpt-4o-mini", "openrouter", 2, 300, 0.06, 2000.0).
		AddRow("anthropic/claude-3-haiku", "openrouter", 1, 150, 0.03, 1500.0)

	mock.ExpectQuery(`SELECT.*FROM oracle_usage WHERE request_timestamp.*AND success.*GROUP BY model_name, model_provider ORDER BY total_cost DESC`).
		WithArgs(since).
		WillReturnRows(rows)

	breakdown, err := tracker.GetModelBreakdown(since)
	if err != nil {
		t.Fatalf("GetModelBreakdown failed: %v", err)
	}

	if len(breakdown) != 2 {
		t.Fatalf("Expected 2 models in breakdown, got %d", len(breakdown))
	}

	if breakdown[0].ModelName != "openai/gpt-4o-mini" {
		t.Errorf("Expected first model to be openai/gpt-4o-mini, got %s", breakdown[0].ModelName)
	}
	if breakdown[0].RequestCount != 2 {
		t.Errorf("Expected 2 requests for gpt-4o-mini, got %d", breakdown[0].RequestCount)
	}
	if breakdown[0].TotalTokens != 300 {
		t.Errorf("Expected 300 total tokens, got %d", breakdown[0].TotalTokens)
	}
	if breakdown[0].TotalCost != 0.06 {
		t.Errorf("Expected 0.06 total cost, got %f", breakdown[0].TotalCost)
	}
	if breakdown[0].AvgResponseTimeMs == nil {
		t.Error("Expected non-nil avg response time")
	} else if *breakdown[0].AvgResponseTimeMs != 2000.0 {
		t.Errorf("Expected 2000.0 avg response time, got %f", *breakdown[0].AvgResponseTimeMs)
	}

	if breakdown[1].ModelName != "anthropic/claude-3-haiku" {
		t.Errorf("Expected second model to be anthropic/claude-3-haiku, got %s", breakdown[1].ModelName)
	}
	if breakdown[1].TotalCost != 0.03 {
		t.Errorf("Expected 0.03 total cost, got %f", breakdown[1].TotalCost)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unfulfilled expectations: %v", err)
	}
}
