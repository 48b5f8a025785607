package main

import (
	"encoding/json"
	"errors"
	"log"
	"math/rand"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"campustrack/internal/attendance"
	"campustrack/internal/identity"
	"campustrack/internal/queue"
	"campustrack/internal/session"
	"campustrack/internal/store"
)

var registrations = promauto.NewCounter(prometheus.CounterOpts{
	Name: "campustrack_registrations_total",
	Help: "Successful identity registrations.",
})

type api struct {
	identities identity.Store
	ledger     attendance.Ledger
	verifier   *attendance.Service
	aggregator *attendance.Aggregator
	registry   *session.Registry
	queue      queue.Queue
	redis      *store.Redis
	db         *store.DB
}

func (a *api) registerRoutes(r *gin.Engine) {
	r.GET("/api/health", a.health)
	r.POST("/api/register", a.register)
	r.POST("/api/login", a.login)
	r.POST("/api/verify-attendance", a.verifyAttendance)

	esp32 := r.Group("/api/esp32")
	esp32.POST("/verify-rfid", a.verifyRFID)
	esp32.POST("/log-attendance", a.logAttendance)
	esp32.POST("/device/register", a.registerDevice)

	sim := r.Group("/api/simulate")
	sim.POST("/rfid-scan", a.simulateRFIDScan)
	sim.POST("/fingerprint-register", a.simulateFingerprintRegister)
	sim.POST("/fingerprint-auth", a.simulateFingerprintAuth)

	dash := r.Group("/api", session.Auth(a.registry))
	dash.POST("/logout", a.logout)

	teachers := dash.Group("/dashboard", session.RequireTeacher())
	teachers.GET("/stats", a.stats)
	teachers.GET("/attendance", a.listAttendance)
	teachers.GET("/users", a.listUsers)
}

func (a *api) health(c *gin.Context) {
	redisHealthy := a.redis.Healthy(c.Request.Context())
	dbHealthy := a.db != nil
	status := http.StatusOK
	if !redisHealthy {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{
		"status":    "ok",
		"db":        dbHealthy,
		"redis":     redisHealthy,
		"timestamp": time.Now(),
	})
}

func (a *api) register(c *gin.Context) {
	var req struct {
		FullName        string `json:"fullName" binding:"required"`
		Email           string `json:"email" binding:"required"`
		Role            string `json:"role" binding:"required"`
		RFIDCardUID     string `json:"rfidCardUID" binding:"required"`
		FingerprintData string `json:"fingerprintData" binding:"required"`
		MatricNumber    string `json:"matricNumber"`
		Faculty         string `json:"faculty"`
		Department      string `json:"department"`
		StaffID         string `json:"staffId"`
		Designation     string `json:"designation"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing required fields: fullName, email, role, rfidCardUID, fingerprintData"})
		return
	}

	candidate := identity.Identity{
		FullName:         req.FullName,
		Email:            req.Email,
		Role:             req.Role,
		RFIDTag:          req.RFIDCardUID,
		FingerprintToken: req.FingerprintData,
	}
	switch req.Role {
	case identity.RoleStudent:
		candidate.Student = &identity.StudentDetails{
			MatricNumber: req.MatricNumber,
			Faculty:      req.Faculty,
			Department:   req.Department,
		}
	case identity.RoleTeacher:
		candidate.Teacher = &identity.TeacherDetails{
			StaffID:     req.StaffID,
			Designation: req.Designation,
		}
	}

	registered, err := a.identities.Register(c.Request.Context(), candidate)
	switch {
	case errors.Is(err, identity.ErrInvalid):
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing role-specific fields for " + req.Role})
		return
	case errors.Is(err, identity.ErrDuplicate):
		c.JSON(http.StatusBadRequest, gin.H{"error": "user with same email, RFID, or fingerprint already exists"})
		return
	case err != nil:
		log.Printf("registration failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	registrations.Inc()
	c.JSON(http.StatusCreated, gin.H{
		"message": "Registration successful",
		"user": gin.H{
			"id":       registered.ID,
			"fullName": registered.FullName,
			"email":    registered.Email,
			"role":     registered.Role,
		},
	})
}

func (a *api) login(c *gin.Context) {
	var req struct {
		Email           string `json:"email" binding:"required"`
		FingerprintData string `json:"fingerprintData" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email and fingerprint data are required"})
		return
	}

	token, teacher, err := a.registry.Login(c.Request.Context(), req.Email, req.FingerprintData)
	if err != nil {
		if errors.Is(err, session.ErrUnauthenticated) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid email or fingerprint"})
			return
		}
		log.Printf("login failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Login successful",
		"token":   token,
		"user": gin.H{
			"id":          teacher.ID,
			"fullName":    teacher.FullName,
			"email":       teacher.Email,
			"role":        teacher.Role,
			"staffId":     teacher.Teacher.StaffID,
			"designation": teacher.Teacher.Designation,
		},
	})
}

func (a *api) logout(c *gin.Context) {
	if err := a.registry.Revoke(c.Request.Context(), session.TokenFrom(c)); err != nil {
		log.Printf("logout failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Logged out successfully"})
}

func (a *api) verifyAttendance(c *gin.Context) {
	var req struct {
		RFIDCardUID     string `json:"rfidCardUID" binding:"required"`
		FingerprintData string `json:"fingerprintData" binding:"required"`
		Action          string `json:"action"`
		Location        string `json:"location"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "RFID card UID and fingerprint data are required"})
		return
	}

	result, err := a.verifier.VerifyDual(c.Request.Context(), attendance.DualRequest{
		RFIDTag:          req.RFIDCardUID,
		FingerprintToken: req.FingerprintData,
		Action:           req.Action,
		Location:         req.Location,
	})
	a.publishEvent(c, result.Event)
	switch {
	case errors.Is(err, attendance.ErrRFIDNotRegistered):
		c.JSON(http.StatusNotFound, gin.H{"error": "RFID card not registered", "verified": false})
		return
	case errors.Is(err, attendance.ErrFingerprintMismatch):
		log.Printf("unauthorized access attempt: rfid %s with mismatched fingerprint", req.RFIDCardUID)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "fingerprint does not match RFID card owner", "verified": false})
		return
	case err != nil:
		log.Printf("attendance verification failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":   "Attendance verified successfully",
		"user":      result.Identity,
		"action":    result.Action,
		"location":  result.Location,
		"timestamp": result.Timestamp,
		"verified":  true,
	})
}

func (a *api) verifyRFID(c *gin.Context) {
	var req struct {
		RFIDUID string `json:"rfid_uid" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "RFID UID is required"})
		return
	}

	owner, err := a.verifier.LookupRFID(c.Request.Context(), req.RFIDUID)
	if err != nil {
		if errors.Is(err, attendance.ErrRFIDNotRegistered) {
			c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "RFID card not registered"})
			return
		}
		log.Printf("rfid lookup failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "internal server error"})
		return
	}

	number := ""
	if owner.Student != nil {
		number = owner.Student.MatricNumber
	} else if owner.Teacher != nil {
		number = owner.Teacher.StaffID
	}
	c.JSON(http.StatusOK, gin.H{
		"success":          true,
		"student_name":     owner.FullName,
		"user_id":          owner.ID,
		"matricNumber":     number,
		"role":             owner.Role,
		"fingerprint_data": owner.FingerprintToken,
	})
}

func (a *api) logAttendance(c *gin.Context) {
	var req struct {
		StudentName string      `json:"student_name"`
		RFIDUID     string      `json:"rfid_uid" binding:"required"`
		Timestamp   json.Number `json:"timestamp"`
		DeviceID    string      `json:"device_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "RFID UID is required"})
		return
	}

	var millis *int64
	if req.Timestamp != "" {
		parsed, err := req.Timestamp.Int64()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "timestamp must be epoch milliseconds"})
			return
		}
		millis = &parsed
	}

	result, err := a.verifier.LogFromDevice(c.Request.Context(), req.RFIDUID, req.DeviceID, millis)
	if err != nil {
		if errors.Is(err, attendance.ErrRFIDNotRegistered) {
			c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "user not found"})
			return
		}
		log.Printf("attendance logging failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "internal server error"})
		return
	}
	a.publishEvent(c, result.Event)

	log.Printf("attendance logged from %s: %s at %s", req.DeviceID, result.Identity.FullName, result.Timestamp)
	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"message":      "Attendance logged successfully",
		"timestamp":    result.Timestamp,
		"user_id":      result.Identity.ID,
		"student_name": result.Identity.FullName,
	})
}

func (a *api) registerDevice(c *gin.Context) {
	var req struct {
		DeviceID   string `json:"device_id"`
		DeviceType string `json:"device_type"`
		Location   string `json:"location"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}
	if req.DeviceID == "" {
		req.DeviceID = "ESP32_001"
	}

	if err := a.verifier.RegisterDevice(c.Request.Context(), attendance.Device{
		DeviceID:   req.DeviceID,
		DeviceType: req.DeviceType,
		Location:   req.Location,
	}); err != nil {
		log.Printf("device registration failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "internal server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"device_id":   req.DeviceID,
		"registered":  true,
		"server_time": time.Now().Format(time.RFC3339),
		"message":     "Device registered successfully",
	})
}

func (a *api) stats(c *gin.Context) {
	stats, err := a.aggregator.Stats(c.Request.Context())
	if err != nil {
		log.Printf("dashboard stats failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (a *api) listAttendance(c *gin.Context) {
	filter := attendance.Filter{Limit: 50}
	if v := c.Query("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			filter.Limit = parsed
		}
	}
	if v := c.Query("offset"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			filter.Offset = parsed
		}
	}
	if v := c.Query("date"); v != "" {
		day, err := time.ParseInLocation("2006-01-02", v, time.Local)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "date must be YYYY-MM-DD"})
			return
		}
		filter.Date = &day
	}

	events, total, err := a.ledger.Query(c.Request.Context(), filter)
	if err != nil {
		log.Printf("attendance query failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"attendance": events,
		"total":      total,
		"limit":      filter.Limit,
		"offset":     filter.Offset,
	})
}

func (a *api) listUsers(c *gin.Context) {
	users, err := a.identities.List(c.Request.Context())
	if err != nil {
		log.Printf("user listing failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users, "total": len(users)})
}

// publishEvent hands an appended event to the audit worker, best effort.
func (a *api) publishEvent(c *gin.Context, evt attendance.Event) {
	if a.queue == nil || evt.ID == "" {
		return
	}
	if err := a.queue.Publish(c.Request.Context(), queue.Message{Type: "attendance", Body: evt.ID}); err != nil {
		log.Printf("queue publish failed: %v", err)
	}
}

var simulatedCards = []string{"RFID101", "RFID102", "04A1B2C3", "04D5E6F7", "RFID_TEACHER_001", "RFID_TEACHER_002"}

func (a *api) simulateRFIDScan(c *gin.Context) {
	card := simulatedCards[rand.Intn(len(simulatedCards))]
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"cardUID": card,
		"message": "RFID card scanned successfully",
	})
}

func (a *api) simulateFingerprintRegister(c *gin.Context) {
	token := "fp_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
	c.JSON(http.StatusOK, gin.H{
		"success":         true,
		"fingerprintData": token,
		"message":         "Fingerprint registered successfully",
	})
}

func (a *api) simulateFingerprintAuth(c *gin.Context) {
	outcomes := []string{
		"teacher_fingerprint_1",
		"teacher_fingerprint_2",
		"student_fingerprint_1",
		"student_fingerprint_2",
		"", // simulated read failure
	}
	token := outcomes[rand.Intn(len(outcomes))]
	if token == "" {
		c.JSON(http.StatusOK, gin.H{
			"success":         false,
			"fingerprintData": nil,
			"message":         "Fingerprint authentication failed",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":         true,
		"fingerprintData": token,
		"message":         "Fingerprint authenticated successfully",
	})
}
