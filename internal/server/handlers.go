package server

import (
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sells-group/auto-oracle/internal/docx"
	"github.com/sells-group/auto-oracle/internal/model"
)

// generatedName is the download name the front end saves filled documents as.
const generatedName = "generated-document.docx"

// uploadTypes are the media types accepted by /upload.
var uploadTypes = []string{
	docx.MIMEType,
	"application/pdf",
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	"text/plain",
	"text/csv",
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes)

	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "File too large")
			return
		}
		writeError(w, http.StatusBadRequest, "No file part")
		return
	}
	defer file.Close() //nolint:errcheck

	// Base of "" is "."; ".." would name the uploads directory's parent.
	name := filepath.Base(header.Filename)
	switch name {
	case ".", "..", string(filepath.Separator):
		writeError(w, http.StatusBadRequest, "No selected file")
		return
	}

	mt, err := mimetype.DetectReader(file)
	if err != nil {
		writeFailure(w, r, model.WrapError(err, model.KindIO, "server: sniff upload"))
		return
	}
	if !mimetype.EqualsAny(mt.String(), uploadTypes...) && !acceptedParent(mt) {
		writeError(w, http.StatusBadRequest, "Unsupported file type: "+mt.String())
		return
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		writeFailure(w, r, model.WrapError(err, model.KindIO, "server: rewind upload"))
		return
	}

	if err := os.MkdirAll(s.opts.UploadsDir, 0o755); err != nil {
		writeFailure(w, r, err)
		return
	}
	dest := filepath.Join(s.opts.UploadsDir, name)
	out, err := os.Create(dest)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	if _, err := io.Copy(out, file); err != nil {
		out.Close() //nolint:errcheck
		writeFailure(w, r, err)
		return
	}
	if err := out.Close(); err != nil {
		writeFailure(w, r, err)
		return
	}

	zap.L().Info("server: stored upload",
		zap.String("path", dest),
		zap.String("type", mt.String()),
	)
	writeJSON(w, http.StatusOK, map[string]string{"filePath": filepath.ToSlash(dest)})
}

// acceptedParent allows subtypes of an accepted type, e.g. a text/plain
// charset variant.
func acceptedParent(mt *mimetype.MIME) bool {
	for p := mt.Parent(); p != nil; p = p.Parent() {
		if p.Is("text/plain") {
			return true
		}
	}
	return false
}

func (s *Server) handleParse(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DocPath string `json:"doc_path"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeFailure(w, r, err)
		return
	}
	if strings.TrimSpace(req.DocPath) == "" {
		writeError(w, http.StatusBadRequest, "doc_path is required")
		return
	}

	path, err := s.resolveUpload(req.DocPath)
	if err != nil {
		writeFailure(w, r, err)
		return
	}

	questions, err := s.svc.Parse(r.Context(), path)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"questions": model.Texts(questions)})
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Question    string `json:"question"`
		ChatbotLink string `json:"chatbot_link"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeFailure(w, r, err)
		return
	}
	if strings.TrimSpace(req.Question) == "" || strings.TrimSpace(req.ChatbotLink) == "" {
		writeError(w, http.StatusBadRequest, "Both question and chatbot_link are required")
		return
	}

	answer, err := s.svc.Answer(r.Context(), req.Question, req.ChatbotLink)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"answer": answer})
}

type batchItem struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
	Error    string `json:"error,omitempty"`
}

func (s *Server) handleQueryBatch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Questions   []string `json:"questions"`
		ChatbotLink string   `json:"chatbot_link"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeFailure(w, r, err)
		return
	}
	if len(req.Questions) == 0 || strings.TrimSpace(req.ChatbotLink) == "" {
		writeError(w, http.StatusBadRequest, "Both questions and chatbot_link are required")
		return
	}

	results, err := s.svc.AnswerAll(r.Context(), req.Questions, req.ChatbotLink, s.opts.BatchConcurrency)
	if err != nil {
		writeFailure(w, r, err)
		return
	}

	items := make([]batchItem, len(results))
	for i, res := range results {
		items[i] = batchItem{Question: res.Question, Answer: res.Answer}
		if res.Err != nil {
			items[i].Error = res.Err.Error()
		}
	}
	writeJSON(w, http.StatusOK, map[string][]batchItem{"answers": items})
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DocumentName string         `json:"documentName"`
		QAArray      []model.QAPair `json:"qaArray"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeFailure(w, r, err)
		return
	}
	if strings.TrimSpace(req.DocumentName) == "" || len(req.QAArray) == 0 {
		writeError(w, http.StatusBadRequest, "Both documentName and qaArray are required")
		return
	}

	docPath, err := s.resolveUpload(req.DocumentName)
	if err != nil {
		writeFailure(w, r, err)
		return
	}

	if err := os.MkdirAll(s.opts.OutputDir, 0o755); err != nil {
		writeFailure(w, r, err)
		return
	}
	outPath := filepath.Join(s.opts.OutputDir, uuid.NewString()+"_filled.docx")

	written, err := s.svc.Fill(r.Context(), docPath, req.QAArray, outPath)
	if err != nil {
		writeFailure(w, r, err)
		return
	}

	f, err := os.Open(written)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	defer f.Close() //nolint:errcheck

	w.Header().Set("Content-Type", docx.MIMEType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+generatedName+`"`)
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, f); err != nil {
		zap.L().Warn("server: stream generated document", zap.Error(err))
	}
}
