package server

import "net/http"

// Handler sets up all API endpoints.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", s.handleHealth)

	mux.HandleFunc("GET /api/tasks", s.handleListTasks)
	mux.HandleFunc("POST /api/tasks", s.handleCreateTask)
	mux.HandleFunc("PATCH /api/tasks/{id}", s.handleUpdateTask)
	mux.HandleFunc("DELETE /api/tasks/{id}", s.handleDeleteTask)
	mux.HandleFunc("GET /api/stats", s.handleStats)

	// AI assistance
	mux.HandleFunc("POST /api/classify", s.handleClassify)
	mux.HandleFunc("POST /api/schedule", s.handleSchedule)
	mux.HandleFunc("POST /api/schedule/apply", s.handleScheduleApply)
	mux.HandleFunc("POST /api/breakdown", s.handleBreakdown)
	mux.HandleFunc("POST /api/breakdown/apply", s.handleBreakdownApply)
	mux.HandleFunc("POST /api/suggestions", s.handleSuggestions)

	return logRequests(s.corsMiddleware(sessionMiddleware(mux)))
}
