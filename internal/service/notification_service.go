package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/ace-school-api/internal/models"
	"github.com/noah-isme/ace-school-api/pkg/jobs"
	"github.com/noah-isme/ace-school-api/pkg/mailer"
)

// Notification job types.
const (
	JobEnrollmentApproved = "enrollment.approved"
	JobEnrollmentPromoted = "enrollment.promoted"
)

// EnrollmentNotice carries what a parent email needs about an enrollment.
type EnrollmentNotice struct {
	EnrollmentID  string
	StudentName   string
	StudentNumber string
	GradeLabel    string
	AcademicYear  string
	Email         string
	ParentUserID  string
	Username      string
	NeedsPassword bool
}

type notificationUserReader interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

type setPasswordIssuer interface {
	IssueSetPasswordToken(user *models.User) (string, time.Time, error)
}

// NotificationConfig configures the notification worker pool.
type NotificationConfig struct {
	Workers     int
	Retries     int
	RetryDelay  time.Duration
	FrontendURL string
}

// NotificationService sends parent emails from a background worker pool.
type NotificationService struct {
	queue       *jobs.Queue
	mailer      mailer.Mailer
	users       notificationUserReader
	tokens      setPasswordIssuer
	frontendURL string
	logger      *zap.Logger
}

// NewNotificationService builds the service and its queue. Start must be
// called before notices are accepted.
func NewNotificationService(m mailer.Mailer, users notificationUserReader, tokens setPasswordIssuer, metrics *MetricsService, logger *zap.Logger, cfg NotificationConfig) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &NotificationService{
		mailer:      m,
		users:       users,
		tokens:      tokens,
		frontendURL: strings.TrimRight(cfg.FrontendURL, "/"),
		logger:      logger,
	}
	s.queue = jobs.NewQueue("notifications", s.Handle, jobs.QueueConfig{
		Workers:    cfg.Workers,
		MaxRetries: cfg.Retries,
		RetryDelay: cfg.RetryDelay,
		Logger:     logger,
		OnOutcome:  metrics.RecordJobOutcome,
	})
	return s
}

// Start launches the workers.
func (s *NotificationService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop waits for in-flight sends to return and stops the workers. Notices
// still buffered are discarded and counted under the discarded job outcome.
func (s *NotificationService) Stop() {
	s.queue.Stop()
}

// NotifyApproved queues the approval email for a new student's parent. It
// gives up when ctx ends while the queue is full.
func (s *NotificationService) NotifyApproved(ctx context.Context, notice EnrollmentNotice) error {
	return s.enqueue(ctx, JobEnrollmentApproved, notice)
}

// NotifyPromoted queues the promotion confirmation for a returning student.
func (s *NotificationService) NotifyPromoted(ctx context.Context, notice EnrollmentNotice) error {
	return s.enqueue(ctx, JobEnrollmentPromoted, notice)
}

func (s *NotificationService) enqueue(ctx context.Context, jobType string, notice EnrollmentNotice) error {
	if strings.TrimSpace(notice.Email) == "" {
		return mailer.ErrNoRecipients
	}
	return s.queue.Enqueue(ctx, jobs.Job{ID: uuid.NewString(), Type: jobType, Payload: notice})
}

// Handle renders and sends one notification job.
func (s *NotificationService) Handle(ctx context.Context, job jobs.Job) error {
	notice, ok := job.Payload.(EnrollmentNotice)
	if !ok {
		return fmt.Errorf("job %s: unexpected payload %T", job.ID, job.Payload)
	}

	var msg mailer.Message
	var err error
	switch job.Type {
	case JobEnrollmentApproved:
		msg, err = s.approvalMessage(ctx, notice)
	case JobEnrollmentPromoted:
		msg = promotionMessage(notice)
	default:
		return fmt.Errorf("job %s: unknown type %q", job.ID, job.Type)
	}
	if err != nil {
		return err
	}

	if err := s.mailer.Send(ctx, msg); err != nil {
		return fmt.Errorf("send %s: %w", job.Type, err)
	}
	s.logger.Info("notification sent",
		zap.String("type", job.Type),
		zap.String("enrollment_id", notice.EnrollmentID),
		zap.Int("attempt", job.Attempt))
	return nil
}

func (s *NotificationService) approvalMessage(ctx context.Context, n EnrollmentNotice) (mailer.Message, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Dear Parent/Guardian,\n\n")
	fmt.Fprintf(&b, "The enrollment of %s has been approved.\n\n", n.StudentName)
	fmt.Fprintf(&b, "Grade Level   : %s\n", n.GradeLabel)
	fmt.Fprintf(&b, "Academic Year : %s\n", n.AcademicYear)
	fmt.Fprintf(&b, "Student No.   : %s\n\n", n.StudentNumber)

	if n.NeedsPassword && n.ParentUserID != "" {
		link, err := s.setPasswordLink(ctx, n.ParentUserID)
		if err != nil {
			return mailer.Message{}, err
		}
		fmt.Fprintf(&b, "A Parent Portal account was created for you.\n")
		fmt.Fprintf(&b, "Username: %s\nEmail:    %s\n\n", n.Username, n.Email)
		fmt.Fprintf(&b, "Set your password here:\n%s\n\n", link)
		fmt.Fprintf(&b, "If you did not request this, ignore this email.\n")
	} else {
		fmt.Fprintf(&b, "You may log in to the Parent Portal to view the enrollment.\n")
	}

	return mailer.Message{
		To:      []mail.Address{{Address: n.Email}},
		Subject: "Enrollment Approved",
		Text:    b.String(),
	}, nil
}

func promotionMessage(n EnrollmentNotice) mailer.Message {
	var b strings.Builder
	fmt.Fprintf(&b, "Dear Parent/Guardian,\n\n")
	fmt.Fprintf(&b, "This is to confirm that %s has been successfully promoted.\n\n", n.StudentName)
	fmt.Fprintf(&b, "New Grade Level : %s\n", n.GradeLabel)
	fmt.Fprintf(&b, "Academic Year   : %s\n", n.AcademicYear)
	fmt.Fprintf(&b, "Student No.     : %s\n\n", n.StudentNumber)
	fmt.Fprintf(&b, "You may log in to the Parent Portal to view the updated enrollment.\n\n")
	fmt.Fprintf(&b, "If you have any questions, please contact the school.\n")
	return mailer.Message{
		To:      []mail.Address{{Address: n.Email}},
		Subject: "Student Promotion Confirmed",
		Text:    b.String(),
	}
}

// setPasswordLink builds FRONTEND_URL/set-password/{uid}/{token}. The token
// is issued at send time so retries never mail an expired link.
func (s *NotificationService) setPasswordLink(ctx context.Context, userID string) (string, error) {
	if s.users == nil || s.tokens == nil {
		return "", errors.New("set-password links are not configured")
	}
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("load parent account: %w", err)
	}
	token, _, err := s.tokens.IssueSetPasswordToken(user)
	if err != nil {
		return "", fmt.Errorf("issue set-password token: %w", err)
	}
	return fmt.Sprintf("%s/set-password/%s/%s", s.frontendURL, user.ID, token), nil
}
