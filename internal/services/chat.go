package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/BerylCAtieno/milo-api/internal/analyzer"
	"github.com/BerylCAtieno/milo-api/internal/extractor"
	"github.com/BerylCAtieno/milo-api/internal/guardrail"
	"github.com/BerylCAtieno/milo-api/internal/labs"
	"github.com/BerylCAtieno/milo-api/internal/models"
	"github.com/BerylCAtieno/milo-api/internal/prompt"
	"github.com/BerylCAtieno/milo-api/internal/repository"
	"github.com/BerylCAtieno/milo-api/internal/session"
	"github.com/BerylCAtieno/milo-api/internal/storage"
	"github.com/BerylCAtieno/milo-api/internal/utils"
)

type ChatService interface {
	CreateSession(ctx context.Context) session.View
	GetSession(ctx context.Context, id string) (*session.View, error)
	DeleteSession(ctx context.Context, id string) error
	// SelectPatient switches the session's patient and clears its transcripts.
	// An empty patientID clears the selection.
	SelectPatient(ctx context.Context, sessionID, patientID string) (*session.View, error)
	SendMessage(ctx context.Context, sessionID string, req *models.SendMessageRequest) (*models.TurnResult, error)
	// UploadReports runs each file through extraction and a lab tab turn,
	// strictly one after another.
	UploadReports(ctx context.Context, sessionID string, files []models.UploadedFile) ([]models.TurnResult, error)
}

type ChatOptions struct {
	Model string
}

type chatService struct {
	sessions  *session.Controller
	patients  repository.PatientRepository
	assembler *prompt.Assembler
	analyzer  analyzer.Analyzer
	extractor *extractor.Extractor
	storage   storage.Storage
	model     string
	logger    *utils.Logger
	now       func() time.Time
}

// NewChatService wires the orchestrator. store may be nil, in which case
// uploaded files are not kept.
func NewChatService(
	sessions *session.Controller,
	patients repository.PatientRepository,
	assembler *prompt.Assembler,
	llm analyzer.Analyzer,
	ext *extractor.Extractor,
	store storage.Storage,
	opts ChatOptions,
	logger *utils.Logger,
) ChatService {
	return &chatService{
		sessions:  sessions,
		patients:  patients,
		assembler: assembler,
		analyzer:  llm,
		extractor: ext,
		storage:   store,
		model:     opts.Model,
		logger:    logger,
		now:       time.Now,
	}
}

func (s *chatService) CreateSession(ctx context.Context) session.View {
	return s.sessions.Create().View()
}

func (s *chatService) GetSession(ctx context.Context, id string) (*session.View, error) {
	sess, err := s.session(id)
	if err != nil {
		return nil, err
	}
	v := sess.View()
	return &v, nil
}

func (s *chatService) DeleteSession(ctx context.Context, id string) error {
	if err := s.sessions.Delete(id); err != nil {
		return utils.NewNotFoundError("Session not found")
	}
	return nil
}

func (s *chatService) SelectPatient(ctx context.Context, sessionID, patientID string) (*session.View, error) {
	sess, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}

	if patientID == "" {
		sess.SelectPatient(nil)
		v := sess.View()
		return &v, nil
	}

	patient, err := s.patients.GetByID(ctx, patientID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, utils.NewNotFoundError("Patient not found")
	}
	if err != nil {
		s.logger.Error("Failed to get patient", "error", err, "patient_id", patientID)
		return nil, utils.NewInternalError("Failed to retrieve patient")
	}

	sess.SelectPatient(patient)
	logger := s.logger.With("session_id", sessionID, "patient_id", patientID)
	if latest := patient.LatestPrimaryLab(); latest != nil {
		logger = logger.With("latest_primary_lab", latest.Date)
	}
	logger.Info("Patient selected", "lab_entries", len(patient.Labs))

	v := sess.View()
	return &v, nil
}

func (s *chatService) SendMessage(ctx context.Context, sessionID string, req *models.SendMessageRequest) (*models.TurnResult, error) {
	sess, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}

	tab, err := session.ParseTab(req.Tab)
	if err != nil {
		return nil, utils.NewBadRequestError("Tab must be 'ask' or 'lab'")
	}

	text := strings.TrimSpace(req.Text)
	if text == "" {
		return nil, utils.NewBadRequestError("Message text is required")
	}

	return s.turn(ctx, sess, tab, text, nil)
}

// turn runs one submission: the user message is recorded, the prompt is
// assembled from the prior history, and the reply or the fallback text is
// appended. When a patient is selected and the message carries lab values,
// one LabEntry is appended to that patient.
func (s *chatService) turn(ctx context.Context, sess *session.Session, tab session.Tab, text string, fileKey *string) (*models.TurnResult, error) {
	logger := s.logger.With("session_id", sess.ID, "tab", string(tab))

	t := sess.Submit(tab, text)
	patient := t.Patient

	var promptPatient *prompt.Patient
	if patient != nil {
		promptPatient = &prompt.Patient{Name: patient.Name}
		if patient.Gender != nil {
			promptPatient.Gender = *patient.Gender
		}
	}

	messages, err := s.assembler.Build(promptPatient, t.History, text)
	if err != nil {
		logger.Error("Failed to assemble prompt", "error", err)
		sess.Fail(t)
		return &models.TurnResult{State: string(session.StateFailed), Reply: session.FallbackReply}, nil
	}

	logger.Debug("Sending chat turn",
		"prompt_version", s.assembler.Version(),
		"messages", len(messages),
		"text_length", len(text))

	reply, err := s.analyzer.Chat(ctx, models.CompletionRequest{
		Model:    s.model,
		Messages: messages,
	})
	if err != nil {
		logger.Error("Failed to get reply", "error", err)
		if !sess.Fail(t) {
			logger.Info("Dropped failure for a previous patient")
		}
		return &models.TurnResult{State: string(session.StateFailed), Reply: session.FallbackReply}, nil
	}

	if !sess.Deliver(t, reply) {
		logger.Info("Dropped reply for a previous patient")
	}

	findings := guardrail.Lint(reply)
	for _, f := range findings {
		logger.Warn("Reply guardrail finding", "rule", f.Rule, "detail", f.Detail)
	}

	result := &models.TurnResult{
		State:    string(session.StateDelivered),
		Reply:    reply,
		Findings: guardrail.Strings(findings),
	}

	if patient == nil {
		return result, nil
	}

	values := labs.Parse(text)
	if len(values) == 0 {
		if labs.IsLabRelated(text) {
			logger.Debug("No lab values recognized", "patient_id", patient.ID)
		}
		return result, nil
	}

	now := s.now()
	entry := &models.LabEntry{
		ID:             utils.GenerateID(),
		Date:           models.EntryDate(now),
		Values:         values.Strings(),
		Recommendation: reply,
		FileKey:        fileKey,
		RawText:        text,
		IsPrimary:      true,
		CreatedAt:      now,
	}

	appended, err := s.patients.AppendLabEntry(ctx, patient.ID, entry)
	if err != nil {
		logger.Error("Failed to append lab entry", "error", err, "patient_id", patient.ID, "entry_id", entry.ID)
		return nil, utils.WrapInternalError("Failed to save lab entry", err)
	}
	if appended {
		logger.Info("Lab entry saved", "patient_id", patient.ID, "entry_id", entry.ID, "values", len(values))
	}

	result.Values = entry.Values
	result.LabEntryID = entry.ID

	return result, nil
}

func (s *chatService) session(id string) (*session.Session, error) {
	sess, err := s.sessions.Get(id)
	if err != nil {
		return nil, utils.NewNotFoundError("Session not found")
	}
	return sess, nil
}
