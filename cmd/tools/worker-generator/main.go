// cmd/tools/worker-generator/main.go
package main

import (
	"bytes"
	"flag"
	"fmt"
	"go/format"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/template"

	"fieldops-workers/pkg/registry"
)

// WorkerData holds data for templates
type WorkerData struct {
	Name         string
	PackageName  string
	Dir          string
	TaskType     string
	Description  string
	InputFields  []Field
	OutputFields []Field
}

type Field struct {
	Name    string
	GoType  string
	JSONTag string
}

// schemaFields turns the top-level properties of an object schema into
// struct fields, sorted by name so output is stable.
func schemaFields(schema map[string]interface{}) []Field {
	props, _ := schema["properties"].(map[string]interface{})
	required := map[string]bool{}
	if req, ok := schema["required"].([]interface{}); ok {
		for _, r := range req {
			if s, ok := r.(string); ok {
				required[s] = true
			}
		}
	}

	names := make([]string, 0, len(props))
	for name := range props {
		names = append(names, name)
	}
	sort.Strings(names)

	fields := make([]Field, 0, len(names))
	for _, name := range names {
		details, _ := props[name].(map[string]interface{})
		tag := name
		if !required[name] {
			tag += ",omitempty"
		}
		fields = append(fields, Field{
			Name:    upperFirst(name),
			GoType:  goType(details["type"]),
			JSONTag: tag,
		})
	}
	return fields
}

// goType maps JSON schema types to Go types. Union types and untyped
// properties stay raw so the handler can decode them leniently.
func goType(jsonType interface{}) string {
	jt, ok := jsonType.(string)
	if !ok {
		return "json.RawMessage"
	}
	switch jt {
	case "string":
		return "string"
	case "integer":
		return "int"
	case "number":
		return "float64"
	case "boolean":
		return "bool"
	default:
		return "json.RawMessage"
	}
}

func upperFirst(s string) string {
	if s == "" {
		return s
	}
	if strings.HasSuffix(s, "Id") {
		s = strings.TrimSuffix(s, "Id") + "ID"
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func usesRaw(fields []Field) bool {
	for _, f := range fields {
		if f.GoType == "json.RawMessage" {
			return true
		}
	}
	return false
}

const handlerTemplate = `// {{ .Dir }}/handler.go
package {{ .PackageName }}

import (
	"context"
	"encoding/json"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"fieldops-workers/internal/common/errors"
	"fieldops-workers/internal/common/logger"
	"fieldops-workers/internal/common/metrics"
	"fieldops-workers/internal/common/validation"
	"fieldops-workers/pkg/registry"
)

const (
	TaskType = "{{ .TaskType }}"
)

// Handler: {{ .Description }}
type Handler struct {
	config    *Config
	validator *validation.Schema
	errors    *errors.ErrorHandler
	logger    logger.Logger
}

func NewHandler(config *Config, log logger.Logger) *Handler {
	log = logger.OrNop(log).WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:    config,
		validator: registry.MustInputValidator(TaskType),
		errors:    errors.NewErrorHandler(log),
		logger:    log,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	started := time.Now()
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	if res := h.validator.ValidateJSON([]byte(job.Variables)); !res.Valid {
		h.fail(client, job, errors.NewInvalidInputError(res.Error()), started)
		return
	}

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		h.fail(client, job, errors.NewInvalidInputError(err.Error()), started)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	output, err := h.execute(ctx, &input)
	if err != nil {
		h.fail(client, job, err, started)
		return
	}

	h.completeJob(client, job, output)
	metrics.ObserveJob(TaskType, "", started)
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if input == nil {
		return nil, errors.NewInvalidInputError("input cannot be nil")
	}
	// TODO: implement {{ .TaskType }}
	return &Output{}, nil
}

func (h *Handler) completeJob(client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"error": err,
		})
		return
	}
	if _, err := cmd.Send(context.Background()); err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"error": err,
		})
	}
}

func (h *Handler) fail(client worker.JobClient, job entities.Job, err error, started time.Time) {
	code := string(errors.ErrCodeInternal)
	if stdErr, ok := errors.AsStandardError(err); ok {
		code = string(stdErr.Code)
	}
	metrics.ObserveJob(TaskType, code, started)
	h.errors.HandleJobError(context.Background(), client, job, err)
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
`

const configTemplate = `// {{ .Dir }}/config.go
package {{ .PackageName }}

import (
	"time"

	"fieldops-workers/internal/common/config"
)

type Config struct {
	Timeout time.Duration
}

func LoadConfig(appCfg *config.Config) *Config {
	cfg := &Config{Timeout: 10 * time.Second}
	if appCfg == nil {
		return cfg
	}
	if w, ok := appCfg.Workers[TaskType]; ok && w.Timeout > 0 {
		cfg.Timeout = time.Duration(w.Timeout) * time.Millisecond
	}
	return cfg
}
`

const modelsTemplate = `// {{ .Dir }}/models.go
package {{ .PackageName }}
{{ if .NeedsJSON }}
import "encoding/json"
{{ end }}
type Input struct {
{{- range .InputFields }}
	{{ .Name }} {{ .GoType }} ` + "`json:\"{{ .JSONTag }}\"`" + `
{{- end }}
}

type Output struct {
{{- range .OutputFields }}
	{{ .Name }} {{ .GoType }} ` + "`json:\"{{ .JSONTag }}\"`" + `
{{- end }}
}
`

const testTemplate = `package {{ .PackageName }}

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"fieldops-workers/internal/common/logger"
)

func createTestConfig() *Config {
	return &Config{Timeout: 5 * time.Second}
}

func createTestLogger(t *testing.T) logger.Logger {
	return logger.NewZapAdapter(zaptest.NewLogger(t))
}

func TestHandler_Execute(t *testing.T) {
	h := NewHandler(createTestConfig(), createTestLogger(t))

	out, err := h.Execute(context.Background(), &Input{})
	require.NoError(t, err)
	assert.NotNil(t, out)
}

func TestHandler_Execute_NilInput(t *testing.T) {
	h := NewHandler(createTestConfig(), createTestLogger(t))

	_, err := h.Execute(context.Background(), nil)
	assert.Error(t, err)
}

func TestLoadConfig(t *testing.T) {
	assert.Equal(t, 10*time.Second, LoadConfig(nil).Timeout)
}
`

type renderData struct {
	WorkerData
	NeedsJSON bool
}

// render executes a template and gofmts the result when it is Go source.
func render(name, tmpl string, data WorkerData) ([]byte, error) {
	t, err := template.New(name).Parse(tmpl)
	if err != nil {
		return nil, fmt.Errorf("parse template %s: %w", name, err)
	}
	var buf bytes.Buffer
	rd := renderData{WorkerData: data, NeedsJSON: usesRaw(data.InputFields) || usesRaw(data.OutputFields)}
	if err := t.Execute(&buf, rd); err != nil {
		return nil, fmt.Errorf("execute template %s: %w", name, err)
	}
	if !strings.HasSuffix(name, ".go") {
		return buf.Bytes(), nil
	}
	src, err := format.Source(buf.Bytes())
	if err != nil {
		return nil, fmt.Errorf("format %s: %w", name, err)
	}
	return src, nil
}

func workerData(act *registry.Activity) WorkerData {
	dir := filepath.ToSlash(filepath.Join("internal/workers", act.Category, act.ID))
	return WorkerData{
		Name:         act.DisplayName,
		PackageName:  strings.ReplaceAll(act.ID, "-", ""),
		Dir:          dir,
		TaskType:     act.TaskType,
		Description:  act.Description,
		InputFields:  schemaFields(act.InputSchema),
		OutputFields: schemaFields(act.OutputSchema),
	}
}

func generate(act *registry.Activity, root string, overwrite bool) ([]string, error) {
	data := workerData(act)
	workerDir := filepath.Join(root, filepath.FromSlash(data.Dir))
	if err := os.MkdirAll(workerDir, 0755); err != nil {
		return nil, fmt.Errorf("create directory: %w", err)
	}

	files := []struct{ name, tmpl string }{
		{"handler.go", handlerTemplate},
		{"config.go", configTemplate},
		{"models.go", modelsTemplate},
		{"handler_test.go", testTemplate},
	}

	var written []string
	for _, f := range files {
		path := filepath.Join(workerDir, f.name)
		if _, err := os.Stat(path); err == nil && !overwrite {
			return written, fmt.Errorf("%s exists, pass -force to overwrite", path)
		}
		src, err := render(f.name, f.tmpl, data)
		if err != nil {
			return written, err
		}
		if err := os.WriteFile(path, src, 0644); err != nil {
			return written, fmt.Errorf("write %s: %w", path, err)
		}
		written = append(written, path)
	}
	return written, nil
}

func main() {
	activity := flag.String("activity", "", "Activity ID from registry (e.g., compute-dashboard)")
	root := flag.String("root", ".", "Module root to generate into")
	registryPath := flag.String("registry", "pkg/registry/activities.json", "Path to the activity registry JSON file")
	force := flag.Bool("force", false, "Overwrite existing files")
	flag.Parse()

	if *activity == "" {
		fmt.Println("Usage: worker-generator -activity <id> [-root <dir>] [-registry <path>] [-force]")
		fmt.Println("\nExample:")
		fmt.Println("  go run ./cmd/tools/worker-generator -activity compute-filter-requirements")
		os.Exit(1)
	}

	reg, err := registry.LoadRegistry(*registryPath)
	if err != nil {
		fmt.Printf("Error loading registry from %s: %v\n", *registryPath, err)
		os.Exit(1)
	}

	var found *registry.Activity
	for i := range reg.Activities {
		if reg.Activities[i].ID == *activity {
			found = &reg.Activities[i]
			break
		}
	}
	if found == nil {
		fmt.Printf("Activity '%s' not found in registry %s\n", *activity, *registryPath)
		os.Exit(1)
	}

	written, err := generate(found, *root, *force)
	for _, path := range written {
		fmt.Printf("Generated %s\n", path)
	}
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("\nNext steps:\n")
	fmt.Printf("  1. Implement execute in handler.go\n")
	fmt.Printf("  2. Register the worker in cmd/worker-manager/main.go\n")
	fmt.Printf("  3. Add a workers.%s entry to configs/config.yaml\n", found.TaskType)
}
