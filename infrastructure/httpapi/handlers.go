package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/clamsproject/dashboard/infrastructure/middleware"
	"github.com/clamsproject/dashboard/internal/application"
	"github.com/clamsproject/dashboard/internal/domain"
	"github.com/clamsproject/dashboard/internal/ports"
)

var errNoSnapshot = errors.New("index not loaded yet")

type snapshotHandler func(w http.ResponseWriter, r *http.Request, snap *application.Snapshot)

// withSnapshot pins the current snapshot for the whole request so that a
// concurrent reload never mixes two versions in one response.
func (s *Server) withSnapshot(h snapshotHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap := s.catalog.Snapshot()
		if snap == nil {
			middleware.WriteError(w, http.StatusServiceUnavailable, errNoSnapshot)
			return
		}
		h(w, r, snap)
	}
}

// fail maps err onto a status code.
func (s *Server) fail(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, ports.ErrRevisionNotFound):
		status = http.StatusNotFound
	case errors.Is(err, ports.ErrVCSUnavailable):
		status = http.StatusConflict
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		status = http.StatusServiceUnavailable
	}
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", zap.Error(err))
	}
	middleware.WriteError(w, status, err)
}

type statusResponse struct {
	LoadedAt       time.Time                 `json:"loaded_at"`
	Revisions      map[string]ports.Revision `json:"revisions"`
	Tasks          int                       `json:"tasks"`
	Batches        int                       `json:"batches"`
	Evaluations    int                       `json:"evaluations"`
	Warnings       int                       `json:"warnings"`
	PublishAllowed bool                      `json:"publish_allowed"`
}

func newStatus(snap *application.Snapshot) statusResponse {
	return statusResponse{
		LoadedAt:       snap.LoadedAt,
		Revisions:      snap.Revisions,
		Tasks:          len(snap.Annotations.Tasks),
		Batches:        len(snap.Annotations.Batches),
		Evaluations:    len(snap.Evaluations.Evaluations),
		Warnings:       len(snap.Warnings),
		PublishAllowed: snap.PublishAllowed() == nil,
	}
}

func (s *Server) status(w http.ResponseWriter, _ *http.Request, snap *application.Snapshot) {
	middleware.WriteJSON(w, http.StatusOK, newStatus(snap))
}

type taskSummary struct {
	Name          string `json:"name"`
	Size          int    `json:"size"`
	DataDrops     int    `json:"data_drops"`
	Qualification string `json:"qualification"`
	Title         string `json:"title,omitempty"`
}

func summarizeTask(t *domain.Task) taskSummary {
	ts := taskSummary{
		Name:          t.Name,
		Size:          t.Len(),
		DataDrops:     len(t.DataDrops),
		Qualification: t.Qualification.String(),
	}
	if t.Manifest != nil {
		ts.Title = t.Manifest.Title
	}
	return ts
}

func (s *Server) listTasks(w http.ResponseWriter, _ *http.Request, snap *application.Snapshot) {
	out := []taskSummary{}
	for _, t := range snap.Annotations.SortedTasks() {
		out = append(out, summarizeTask(t))
	}
	middleware.WriteJSON(w, http.StatusOK, out)
}

type dataDropDetail struct {
	Name  string   `json:"name"`
	Files []string `json:"files"`
}

type taskDetail struct {
	taskSummary
	Path          string            `json:"path"`
	Readme        string            `json:"readme"`
	Process       string            `json:"process"`
	GoldDirectory string            `json:"gold_directory"`
	GoldFiles     []domain.GoldFile `json:"gold_files"`
	GoldIDs       []string          `json:"gold_ids"`
	Drops         []dataDropDetail  `json:"drops"`
	Manifest      *domain.Manifest  `json:"manifest,omitempty"`
}

func (s *Server) getTask(w http.ResponseWriter, r *http.Request, snap *application.Snapshot) {
	t, err := snap.Annotations.Task(r.PathValue("name"))
	if err != nil {
		s.fail(w, err)
		return
	}
	detail := taskDetail{
		taskSummary:   summarizeTask(t),
		Path:          t.Path,
		Readme:        t.Readme,
		Process:       t.Process,
		GoldDirectory: t.GoldDirectory,
		GoldFiles:     t.GoldFiles,
		GoldIDs:       t.GoldIDs(),
		Drops:         []dataDropDetail{},
		Manifest:      t.Manifest,
	}
	if detail.GoldFiles == nil {
		detail.GoldFiles = []domain.GoldFile{}
	}
	for _, name := range t.DataDropNames() {
		dd, _ := t.DataDrop(name)
		detail.Drops = append(detail.Drops, dataDropDetail{Name: name, Files: dd.FileNames()})
	}
	middleware.WriteJSON(w, http.StatusOK, detail)
}

func (s *Server) taskBatches(w http.ResponseWriter, r *http.Request, snap *application.Snapshot) {
	rows, err := snap.Annotations.TaskOverlaps(r.PathValue("name"))
	if err != nil {
		s.fail(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, rows)
}

type batchSummary struct {
	Name string `json:"name"`
	Size int    `json:"size"`
}

func (s *Server) listBatches(w http.ResponseWriter, _ *http.Request, snap *application.Snapshot) {
	out := []batchSummary{}
	for _, b := range snap.Annotations.SortedBatches() {
		out = append(out, batchSummary{Name: b.Stem, Size: b.Len()})
	}
	middleware.WriteJSON(w, http.StatusOK, out)
}

type batchDetail struct {
	batchSummary
	Path    string   `json:"path"`
	Files   []string `json:"files"`
	Comment string   `json:"comment"`
	Content string   `json:"content"`
}

func (s *Server) getBatch(w http.ResponseWriter, r *http.Request, snap *application.Snapshot) {
	b, err := snap.Annotations.Batch(r.PathValue("name"))
	if err != nil {
		s.fail(w, err)
		return
	}
	files := b.Files
	if files == nil {
		files = []string{}
	}
	middleware.WriteJSON(w, http.StatusOK, batchDetail{
		batchSummary: batchSummary{Name: b.Stem, Size: b.Len()},
		Path:         b.Path,
		Files:        files,
		Comment:      b.Comment,
		Content:      b.Content,
	})
}

func (s *Server) batchTasks(w http.ResponseWriter, r *http.Request, snap *application.Snapshot) {
	rows, err := snap.Annotations.BatchOverlaps(r.PathValue("name"))
	if err != nil {
		s.fail(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, rows)
}

type usageResponse struct {
	Batch       string              `json:"batch"`
	Known       bool                `json:"known"`
	Predictions []application.Usage `json:"predictions"`
	Reports     []application.Usage `json:"reports"`
}

// batchUsage answers for any batch name, including names that only appear
// in the evaluation repository, so that dangling references can be traced.
func (s *Server) batchUsage(w http.ResponseWriter, r *http.Request, snap *application.Snapshot) {
	name := r.PathValue("name")
	resp := usageResponse{
		Batch:       name,
		Known:       snap.Annotations.HasBatch(name),
		Predictions: snap.Index.BatchUsageInPredictions(name),
		Reports:     snap.Index.BatchUsageInReports(name),
	}
	if resp.Predictions == nil {
		resp.Predictions = []application.Usage{}
	}
	if resp.Reports == nil {
		resp.Reports = []application.Usage{}
	}
	middleware.WriteJSON(w, http.StatusOK, resp)
}

type evaluationSummary struct {
	Name          string `json:"name"`
	Predictions   int    `json:"predictions"`
	Reports       int    `json:"reports"`
	Qualification string `json:"qualification"`
}

func (s *Server) listEvaluations(w http.ResponseWriter, _ *http.Request, snap *application.Snapshot) {
	out := []evaluationSummary{}
	for _, e := range snap.Evaluations.SortedEvaluations() {
		out = append(out, evaluationSummary{
			Name:          e.Name,
			Predictions:   len(e.Predictions),
			Reports:       len(e.Reports),
			Qualification: e.Qualification.String(),
		})
	}
	middleware.WriteJSON(w, http.StatusOK, out)
}

type evaluationDetail struct {
	evaluationSummary
	Readme      string                    `json:"readme"`
	Scripts     []string                  `json:"scripts"`
	Manifest    *domain.Manifest          `json:"manifest,omitempty"`
	Predictions []*domain.PredictionBatch `json:"prediction_batches"`
	Reports     []reportDetail            `json:"report_files"`
	Warnings    []domain.Warning          `json:"warnings"`
}

// reportDetail leaves out the report body, which can be large.
type reportDetail struct {
	Name     string           `json:"name"`
	Tool     string           `json:"tool"`
	Batch    string           `json:"batch"`
	Warnings []domain.Warning `json:"warnings,omitempty"`
}

func (s *Server) getEvaluation(w http.ResponseWriter, r *http.Request, snap *application.Snapshot) {
	e, err := snap.Evaluations.Evaluation(r.PathValue("name"))
	if err != nil {
		s.fail(w, err)
		return
	}
	detail := evaluationDetail{
		evaluationSummary: evaluationSummary{
			Name:          e.Name,
			Predictions:   len(e.Predictions),
			Reports:       len(e.Reports),
			Qualification: e.Qualification.String(),
		},
		Readme:      e.Readme,
		Scripts:     e.Scripts,
		Manifest:    e.Manifest,
		Predictions: e.SortedPredictions(),
		Reports:     []reportDetail{},
		Warnings:    e.Warnings(),
	}
	if detail.Scripts == nil {
		detail.Scripts = []string{}
	}
	for _, rep := range e.SortedReports() {
		detail.Reports = append(detail.Reports, reportDetail{
			Name:     rep.Name,
			Tool:     rep.ReportTool,
			Batch:    rep.ReportBatch,
			Warnings: rep.Warnings,
		})
	}
	for _, pb := range e.SortedPredictions() {
		detail.Warnings = append(detail.Warnings, snap.Index.WarningsFor(pb.Path)...)
	}
	for _, rep := range e.SortedReports() {
		detail.Warnings = append(detail.Warnings, snap.Index.WarningsFor(rep.Path)...)
	}
	if detail.Warnings == nil {
		detail.Warnings = []domain.Warning{}
	}
	middleware.WriteJSON(w, http.StatusOK, detail)
}

type compareResponse struct {
	Task       string            `json:"task"`
	Batch      string            `json:"batch"`
	Comparison domain.Comparison `json:"comparison"`
}

func (s *Server) compare(w http.ResponseWriter, r *http.Request, snap *application.Snapshot) {
	task, batch := r.URL.Query().Get("task"), r.URL.Query().Get("batch")
	if task == "" || batch == "" {
		middleware.WriteError(w, http.StatusBadRequest, errors.New("both task and batch query parameters are required"))
		return
	}
	cmp, err := snap.Annotations.Compare(task, batch)
	if err != nil {
		s.fail(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, compareResponse{Task: task, Batch: batch, Comparison: cmp})
}

type warningsResponse struct {
	Warnings       []domain.Warning `json:"warnings"`
	PublishAllowed bool             `json:"publish_allowed"`
}

func (s *Server) warnings(w http.ResponseWriter, _ *http.Request, snap *application.Snapshot) {
	ws := snap.Warnings
	if ws == nil {
		ws = []domain.Warning{}
	}
	middleware.WriteJSON(w, http.StatusOK, warningsResponse{Warnings: ws, PublishAllowed: snap.PublishAllowed() == nil})
}

func (s *Server) revisions(w http.ResponseWriter, r *http.Request) {
	revs, err := s.catalog.Revisions(r.Context())
	if err != nil {
		s.fail(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, revs)
}

func (s *Server) reload(w http.ResponseWriter, r *http.Request) {
	snap, err := s.catalog.Reload(r.Context())
	if err != nil {
		s.fail(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, newStatus(snap))
}

type checkoutRequest struct {
	Repository string `json:"repository"`
	Revision   string `json:"revision"`
}

func (s *Server) checkout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, fmt.Errorf("invalid checkout request: %w", err))
		return
	}
	if req.Repository == "" || req.Revision == "" {
		middleware.WriteError(w, http.StatusBadRequest, errors.New("repository and revision are required"))
		return
	}
	snap, err := s.catalog.Checkout(r.Context(), req.Repository, req.Revision)
	if err != nil {
		s.fail(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, newStatus(snap))
}
