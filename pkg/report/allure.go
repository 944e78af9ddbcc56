package report

import (
	"encoding/json"
	"fmt"
	"hash/fnv"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/devicelab-dev/appium-harness/pkg/core"
	"github.com/devicelab-dev/appium-harness/pkg/logger"
)

// Allure result schema types.

// AllureResult represents a single test result in Allure format.
type AllureResult struct {
	UUID          string              `json:"uuid"`
	HistoryID     string              `json:"historyId"`
	FullName      string              `json:"fullName"`
	Name          string              `json:"name"`
	Status        string              `json:"status"`
	Stage         string              `json:"stage"`
	Start         int64               `json:"start"`
	Stop          int64               `json:"stop"`
	Labels        []AllureLabel       `json:"labels"`
	StatusDetails AllureStatusDetails `json:"statusDetails"`
	Steps         []AllureStep        `json:"steps"`
	Attachments   []AllureAttachment  `json:"attachments"`
}

// AllureStep represents a step within a test result.
type AllureStep struct {
	Name   string `json:"name"`
	Status string `json:"status"`
	Stage  string `json:"stage"`
}

// AllureAttachment represents a file attachment.
type AllureAttachment struct {
	Name   string `json:"name"`
	Source string `json:"source"`
	Type   string `json:"type"`
}

// AllureLabel represents a label on a test result.
type AllureLabel struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// AllureStatusDetails holds failure message and trace.
type AllureStatusDetails struct {
	Message string `json:"message"`
	Trace   string `json:"trace"`
}

// AllureCategory defines a failure category with regex matching.
type AllureCategory struct {
	Name            string   `json:"name"`
	MatchedStatuses []string `json:"matchedStatuses"`
	MessageRegex    string   `json:"messageRegex"`
}

// GenerateAllure generates Allure-compatible report files in <reportDir>/allure-results/.
// Attachment files are copied from assetsDir.
func GenerateAllure(reportDir, assetsDir string) error {
	index, records, err := ReadReport(reportDir)
	if err != nil {
		return fmt.Errorf("read report: %w", err)
	}

	allureDir := filepath.Join(reportDir, "allure-results")
	if err := os.MkdirAll(allureDir, 0o755); err != nil {
		return fmt.Errorf("create allure-results dir: %w", err)
	}

	// Write one result file per run
	for i := range records {
		rec := &records[i]
		result := buildAllureResult(rec)

		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal allure result for %s: %w", rec.ID, err)
		}

		resultPath := filepath.Join(allureDir, rec.ID+"-result.json")
		if err := os.WriteFile(resultPath, data, 0o644); err != nil {
			return fmt.Errorf("write allure result %s: %w", rec.ID, err)
		}
		for _, a := range rec.Attachments {
			copyFile(filepath.Join(assetsDir, a.Path), filepath.Join(allureDir, filepath.Base(a.Path)))
		}
	}

	if err := writeAllureCategories(allureDir); err != nil {
		return err
	}

	var device core.PlatformInfo
	if len(records) > 0 {
		device = records[len(records)-1].Device
	}
	if err := writeAllureEnvironment(allureDir, index, device); err != nil {
		return err
	}

	return nil
}

// buildAllureResult builds an AllureResult from a run record.
func buildAllureResult(rec *Record) AllureResult {
	labels := []AllureLabel{
		{Name: "suite", Value: rec.Name},
		{Name: "framework", Value: "appium"},
		{Name: "severity", Value: "normal"},
	}
	if rec.Device.DeviceName != "" {
		labels = append(labels, AllureLabel{Name: "host", Value: rec.Device.DeviceName})
	}
	if rec.Device.Platform != "" {
		labels = append(labels, AllureLabel{Name: "tag", Value: rec.Device.Platform})
	}
	if rec.Session != "" {
		labels = append(labels, AllureLabel{Name: "thread", Value: rec.Session})
	}

	var statusDetails AllureStatusDetails
	var steps []AllureStep
	if rec.Error != nil {
		statusDetails.Message = rec.Error.Message
		statusDetails.Trace = errorTrace(rec.Error)
		if attempts, ok := rec.Error.Details["attempts"].([]interface{}); ok {
			for _, a := range attempts {
				steps = append(steps, AllureStep{Name: fmt.Sprint(a), Status: "failed", Stage: "finished"})
			}
		}
	}
	if steps == nil {
		steps = []AllureStep{}
	}

	attachments := make([]AllureAttachment, 0, len(rec.Attachments))
	for _, a := range rec.Attachments {
		attachments = append(attachments, AllureAttachment{
			Name:   a.Name,
			Source: filepath.Base(a.Path),
			Type:   a.ContentType,
		})
	}

	return AllureResult{
		UUID:          rec.ID,
		HistoryID:     fnv32aHash(rec.Name + ":" + rec.Device.Platform),
		FullName:      rec.Name,
		Name:          rec.Name,
		Status:        mapAllureStatus(rec.Status, rec.Error),
		Stage:         "finished",
		Start:         rec.StartTime.UnixMilli(),
		Stop:          rec.EndTime.UnixMilli(),
		Labels:        labels,
		StatusDetails: statusDetails,
		Steps:         steps,
		Attachments:   attachments,
	}
}

func errorTrace(e *Error) string {
	var b strings.Builder
	fmt.Fprintf(&b, "type: %s\n", e.Type)
	if e.Code != "" {
		fmt.Fprintf(&b, "code: %s\n", e.Code)
	}
	return b.String()
}

// copyFile copies a single file from src to dst, ignoring a missing source.
func copyFile(src, dst string) {
	in, err := os.Open(src)
	if err != nil {
		return
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		logger.Warn("failed to copy %s to %s: %v", src, dst, err)
	}
}

// mapAllureStatus maps a run outcome to an Allure status. Configuration and
// session problems are "broken": the app was never exercised.
func mapAllureStatus(s Status, e *Error) string {
	switch s {
	case StatusPassed:
		return "passed"
	case StatusFailed:
		if e != nil && (e.Type == core.ErrCategoryConfig.String() || e.Type == core.ErrCategoryConnection.String()) {
			return "broken"
		}
		return "failed"
	case StatusSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// fnv32aHash returns a hex-encoded FNV-32a hash of the input string.
func fnv32aHash(s string) string {
	h := fnv.New32a()
	h.Write([]byte(s))
	return fmt.Sprintf("%08x", h.Sum32())
}

// writeAllureCategories writes categories.json for failure categorization.
func writeAllureCategories(allureDir string) error {
	categories := []AllureCategory{
		{Name: "Element Not Found", MatchedStatuses: []string{"failed"}, MessageRegex: "(?i).*not found.*"},
		{Name: "Not Interactable", MatchedStatuses: []string{"failed"}, MessageRegex: "(?i).*never became interactable.*"},
		{Name: "Interaction Failed", MatchedStatuses: []string{"failed"}, MessageRegex: "(?i).*(tap|type|clear|read).*failed.*"},
		{Name: "Timeout", MatchedStatuses: []string{"failed"}, MessageRegex: "(?i).*timeout.*|.*timed out.*|.*within.*"},
		{Name: "Session Not Created", MatchedStatuses: []string{"broken"}, MessageRegex: "(?i).*could not create session.*"},
		{Name: "Invalid Configuration", MatchedStatuses: []string{"broken"}, MessageRegex: "(?i).*invalid configuration.*"},
	}

	data, err := json.MarshalIndent(categories, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal categories: %w", err)
	}

	path := filepath.Join(allureDir, "categories.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write categories.json: %w", err)
	}

	return nil
}

// writeAllureEnvironment writes environment.properties with device metadata.
func writeAllureEnvironment(allureDir string, index *Index, device core.PlatformInfo) error {
	var b strings.Builder
	b.WriteString("framework=appium\n")

	if device.DeviceName != "" {
		b.WriteString(fmt.Sprintf("device.name=%s\n", device.DeviceName))
	}
	if device.Platform != "" {
		b.WriteString(fmt.Sprintf("device.platform=%s\n", device.Platform))
	}
	if device.OSVersion != "" {
		b.WriteString(fmt.Sprintf("device.osVersion=%s\n", device.OSVersion))
	}
	if device.AutomationName != "" {
		b.WriteString(fmt.Sprintf("device.automation=%s\n", device.AutomationName))
	}
	if device.AppID != "" {
		b.WriteString(fmt.Sprintf("app.id=%s\n", device.AppID))
	}
	b.WriteString(fmt.Sprintf("report.version=%s\n", index.Version))

	path := filepath.Join(allureDir, "environment.properties")
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("write environment.properties: %w", err)
	}

	return nil
}
