package httpapi

import (
	"fmt"
	"net/http"
	"slices"

	"github.com/clamsproject/dashboard/infrastructure/middleware"
	"github.com/clamsproject/dashboard/internal/application"
	"github.com/clamsproject/dashboard/internal/domain"
)

// fileResponse carries the display text of one repository file. JSON and
// MMIF files are pretty-printed, so Size is the length of Content rather
// than the size on disk.
type fileResponse struct {
	Path    string `json:"path"`
	Size    int64  `json:"size"`
	Content string `json:"content"`
}

// serveText writes text unless it exceeds the configured cap.
func (s *Server) serveText(w http.ResponseWriter, p, text string) {
	size := int64(len(text))
	if application.FileTooLarge(size, s.maxFileSize) {
		s.tooLarge(w, p, size)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, fileResponse{Path: p, Size: size, Content: text})
}

func (s *Server) tooLarge(w http.ResponseWriter, p string, size int64) {
	middleware.WriteError(w, http.StatusRequestEntityTooLarge,
		fmt.Errorf("%s is too large to display (%s)", p, application.HumanSize(size)))
}

func (s *Server) goldFile(w http.ResponseWriter, r *http.Request, snap *application.Snapshot) {
	t, err := snap.Annotations.Task(r.PathValue("name"))
	if err != nil {
		s.fail(w, err)
		return
	}
	rel := r.PathValue("path")
	known := slices.ContainsFunc(t.GoldFiles, func(g domain.GoldFile) bool { return g.RelPath == rel })
	if !known {
		s.fail(w, domain.NotFoundError("gold file", rel))
		return
	}
	text, err := t.GoldContent(rel)
	if err != nil {
		s.fail(w, err)
		return
	}
	s.serveText(w, rel, text)
}

func (s *Server) dropFile(w http.ResponseWriter, r *http.Request, snap *application.Snapshot) {
	t, err := snap.Annotations.Task(r.PathValue("name"))
	if err != nil {
		s.fail(w, err)
		return
	}
	dd, ok := t.DataDrop(r.PathValue("drop"))
	if !ok {
		s.fail(w, domain.NotFoundError("data drop", r.PathValue("drop")))
		return
	}
	file := r.PathValue("file")
	if !slices.Contains(dd.Files, file) {
		s.fail(w, domain.NotFoundError("file", file))
		return
	}
	text, err := dd.FileContent(file)
	if err != nil {
		s.fail(w, err)
		return
	}
	s.serveText(w, file, text)
}

type fileSize struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
}

type predictionDetail struct {
	*domain.PredictionBatch
	Evaluation string     `json:"evaluation"`
	FileSizes  []fileSize `json:"file_sizes"`
	BatchKnown bool       `json:"batch_known"`
	Reports    []string   `json:"reports"`
}

// prediction resolves the evaluation and prediction batch named in the
// request path.
func (s *Server) prediction(w http.ResponseWriter, r *http.Request, snap *application.Snapshot) (*domain.Evaluation, *domain.PredictionBatch, bool) {
	e, err := snap.Evaluations.Evaluation(r.PathValue("name"))
	if err != nil {
		s.fail(w, err)
		return nil, nil, false
	}
	pb, ok := e.Prediction(r.PathValue("batch"))
	if !ok {
		s.fail(w, domain.NotFoundError("prediction batch", r.PathValue("batch")))
		return nil, nil, false
	}
	return e, pb, true
}

func (s *Server) getPrediction(w http.ResponseWriter, r *http.Request, snap *application.Snapshot) {
	e, pb, ok := s.prediction(w, r, snap)
	if !ok {
		return
	}
	detail := predictionDetail{
		PredictionBatch: pb,
		Evaluation:      e.Name,
		FileSizes:       []fileSize{},
		BatchKnown:      snap.Annotations.HasBatch(pb.PredictionBatch),
		Reports:         []string{},
	}
	for _, name := range pb.FileNames() {
		size, err := pb.FileSize(name)
		if err != nil {
			s.fail(w, err)
			return
		}
		detail.FileSizes = append(detail.FileSizes, fileSize{Name: name, Size: size})
	}
	for _, rep := range e.SortedReports() {
		if pb.PredictionBatch != "" && rep.ReportBatch == pb.PredictionBatch {
			detail.Reports = append(detail.Reports, rep.Name)
		}
	}
	middleware.WriteJSON(w, http.StatusOK, detail)
}

// predictionFile checks the size on disk before reading, since MMIF
// output can be large.
func (s *Server) predictionFile(w http.ResponseWriter, r *http.Request, snap *application.Snapshot) {
	_, pb, ok := s.prediction(w, r, snap)
	if !ok {
		return
	}
	file := r.PathValue("file")
	if !slices.Contains(pb.Files, file) {
		s.fail(w, domain.NotFoundError("file", file))
		return
	}
	size, err := pb.FileSize(file)
	if err != nil {
		s.fail(w, err)
		return
	}
	if application.FileTooLarge(size, s.maxFileSize) {
		s.tooLarge(w, file, size)
		return
	}
	text, err := pb.FileContent(file)
	if err != nil {
		s.fail(w, err)
		return
	}
	s.serveText(w, file, text)
}

func (s *Server) reportFile(w http.ResponseWriter, r *http.Request, snap *application.Snapshot) {
	e, err := snap.Evaluations.Evaluation(r.PathValue("name"))
	if err != nil {
		s.fail(w, err)
		return
	}
	rep, ok := e.Report(r.PathValue("report"))
	if !ok {
		s.fail(w, domain.NotFoundError("report", r.PathValue("report")))
		return
	}
	s.serveText(w, rep.Name, rep.Content)
}
