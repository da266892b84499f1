package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
)

func TestStartupLoggerEvent(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	NewStartupLogger("check-status").
		RunID("run-1").
		Bucket("images", "frames-bucket").
		DynamoTable("snapshots", "").
		SSMParam("apiKey", "/cvat/api-key").
		Dir("reports", "reports").
		Feature("dryRun", true).
		Config("url", "https://cvat.example.com").
		Log()

	var doc map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &doc); err != nil {
		t.Fatalf("output is not JSON: %v (%s)", err, buf.String())
	}
	if doc["message"] != "Run started" {
		t.Errorf("unexpected message: %v", doc["message"])
	}
	run := doc["run"].(map[string]interface{})
	if run["command"] != "check-status" || run["runId"] != "run-1" {
		t.Errorf("unexpected run dict: %v", run)
	}
	resources := doc["resources"].(map[string]interface{})
	if _, ok := resources["dynamoTables"]; ok {
		t.Error("empty table name should not be registered")
	}
	if resources["buckets"].(map[string]interface{})["images"] != "frames-bucket" {
		t.Errorf("unexpected buckets: %v", resources["buckets"])
	}
	if doc["features"].(map[string]interface{})["dryRun"] != true {
		t.Errorf("unexpected features: %v", doc["features"])
	}
}

func TestLevelFromEnv(t *testing.T) {
	tests := []struct {
		value string
		want  zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"warn", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"", zerolog.InfoLevel},
		{"bogus", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			t.Setenv(LevelEnvVar, tt.value)
			if got := levelFromEnv(); got != tt.want {
				t.Errorf("levelFromEnv() = %v, want %v", got, tt.want)
			}
		})
	}
}
