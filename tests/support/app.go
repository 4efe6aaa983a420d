// Package support builds a fully wired application over an in-memory database for
// the contract, integration and performance suites.
package support

import (
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-progress-api/internal/config"
	"github.com/noah-isme/gema-progress-api/internal/events"
	"github.com/noah-isme/gema-progress-api/internal/handler"
	"github.com/noah-isme/gema-progress-api/internal/health"
	"github.com/noah-isme/gema-progress-api/internal/middleware"
	"github.com/noah-isme/gema-progress-api/internal/models"
	"github.com/noah-isme/gema-progress-api/internal/repository"
	"github.com/noah-isme/gema-progress-api/internal/router"
	"github.com/noah-isme/gema-progress-api/internal/service"
)

// JWTSecret signs tokens issued by Token.
const JWTSecret = "test-secret"

// App is a wired application and its backing database.
type App struct {
	Fiber *fiber.App
	DB    *gorm.DB
}

// NewApp wires every report component. redisClient may be nil.
func NewApp(t *testing.T, redisClient *redis.Client) App {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(
		&models.Student{},
		&models.Teacher{},
		&models.Subject{},
		&models.Class{},
		&models.Report{},
		&models.ReportStatusHistory{},
		&models.AuditEntry{},
	))

	logger := zerolog.New(io.Discard)
	validate := validator.New(validator.WithRequiredStructEnabled())
	cfg := config.Config{AppName: "Progress Test", AppEnv: "test", JWTSecret: JWTSecret}

	publisher := events.NewBrokerPublisher(redisClient, nil, "progress-test", logger)
	reportRepo := repository.NewReportRepository(db)
	auditService := service.NewAuditService(repository.NewAuditRepository(db), logger)
	serviceCfg := service.ReportServiceConfig{StoreTimeout: 5 * time.Second}
	reportService := service.NewReportService(reportRepo, service.NewSubmissionGuard(reportRepo, validate), validate, auditService, publisher, serviceCfg, logger)
	bulkService := service.NewReportBulkService(reportService, repository.NewStudentRepository(db), service.ReportBulkConfig{BatchSize: 10}, logger)
	reviewService := service.NewReportReviewService(reportRepo, validate, auditService, publisher, serviceCfg, logger)
	statsService := service.NewReportStatsService(reportRepo, redisClient, time.Minute, logger)

	registry := health.NewRegistry(time.Second)
	registry.Register("database", health.Database(db))
	if redisClient != nil {
		registry.Register("redis", health.Redis(redisClient))
	}

	app := fiber.New()
	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, cfg, router.Dependencies{
		ReportHandler:      handler.NewReportHandler(reportService, bulkService, logger),
		AdminReportHandler: handler.NewAdminReportHandler(reportService, reviewService, statsService, logger),
		AdminAuditHandler:  handler.NewAdminAuditHandler(auditService, logger),
		Health:             registry,
		JWTMiddleware:      middleware.JWTProtected(JWTSecret),
	})

	return App{Fiber: app, DB: db}
}

// Token issues a signed bearer token for the given user.
func Token(t *testing.T, userID uint, role string) string {
	t.Helper()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  fmt.Sprintf("%d", userID),
		"role": role,
		"exp":  time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(JWTSecret))
	require.NoError(t, err)
	return "Bearer " + signed
}

// School is the reference data seeded by SeedSchool.
type School struct {
	Teacher  models.Teacher
	Subject  models.Subject
	Class    models.Class
	Students []models.Student
}

// SeedSchool creates one teacher, subject and class plus n students.
func SeedSchool(t *testing.T, db *gorm.DB, n int) School {
	t.Helper()

	school := School{
		Teacher: models.Teacher{Name: "Pak Budi", Email: "budi@school.test"},
		Subject: models.Subject{Name: "Mathematics", Code: "MATH"},
		Class:   models.Class{Name: "7A"},
	}
	require.NoError(t, db.Create(&school.Teacher).Error)
	require.NoError(t, db.Create(&school.Subject).Error)
	require.NoError(t, db.Create(&school.Class).Error)

	for i := 1; i <= n; i++ {
		student := models.Student{Name: fmt.Sprintf("Student %02d", i), AdmissionNumber: fmt.Sprintf("ADM-%03d", i), ClassID: school.Class.ID}
		require.NoError(t, db.Create(&student).Error)
		school.Students = append(school.Students, student)
	}

	return school
}

// ReportPayload builds a create request body for student.
func (s School) ReportPayload(student models.Student, term int) map[string]interface{} {
	return map[string]interface{}{
		"student_id":            student.ID,
		"teacher_id":            s.Teacher.ID,
		"subject_id":            s.Subject.ID,
		"class_id":              s.Class.ID,
		"term":                  term,
		"academic_year":         "2025",
		"total_assignments":     12,
		"submitted_assignments": 10,
		"average_score":         84.25,
		"teacher_remark":        "Consistent effort",
	}
}
