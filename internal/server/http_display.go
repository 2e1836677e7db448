package server

import "fmt"

// displayServerInfo shows server configuration information
func (s *Server) displayServerInfo() {
	s.displayEndpoints()
	s.displayAuthInfo()
	s.displayRequestLimitInfo()
	s.displayRateLimitInfo()
}

// displayEndpoints shows available endpoints
func (s *Server) displayEndpoints() {
	scheme := "http"
	if s.TLSConfig.Mode == "server" {
		scheme = "https"
	}
	host := s.Host
	if host == "" || host == "0.0.0.0" {
		host = "localhost"
	}

	fmt.Printf("Report page: %s://%s:%s/\n", scheme, host, s.Port)
	fmt.Println("Available endpoints:")
	fmt.Println("  GET  /             - Upload form and report")
	fmt.Println("  POST /process      - Submit a resume (pdf_doc + api_key)")
	fmt.Println("  POST /clear        - Clear the current report")
	fmt.Println("  GET  /export.json  - Download the report as JSON")
	if s.Renderer != nil {
		fmt.Println("  GET  /export.pdf   - Download the report as PDF")
	}
	fmt.Println("  GET  /api/report   - Current report (requires API key)")
	fmt.Println("  GET  /api/chart    - Chart data (requires API key)")
	fmt.Println("  GET  /health       - Health check")
	fmt.Println("  GET  /stats        - Server statistics")
}

// displayAuthInfo shows authentication configuration
func (s *Server) displayAuthInfo() {
	if len(s.APIKeys) > 0 {
		fmt.Printf("API authentication: ENABLED (%d keys configured)\n", len(s.APIKeys))
		fmt.Println("Include 'X-API-Key: <your-key>' header in requests to /api/*")
	} else {
		fmt.Println("API authentication: DISABLED (no API keys configured)")
	}
}

// displayRequestLimitInfo shows request size limit configuration
func (s *Server) displayRequestLimitInfo() {
	if s.MaxRequestSize > 0 {
		fmt.Printf("Request size limit: %d bytes (%.1f MB)\n", s.MaxRequestSize, float64(s.MaxRequestSize)/(1024*1024))
	} else {
		fmt.Println("Request size limit: DISABLED")
		fmt.Println("WARNING: No request size limits configured!")
	}
}

// displayRateLimitInfo shows rate limiting configuration
func (s *Server) displayRateLimitInfo() {
	if s.RateLimit != nil && s.RateLimit.Enabled {
		fmt.Printf("Rate limiting: ENABLED (%d requests/min, burst: %d)\n",
			s.RateLimit.RequestsPerMin, s.RateLimit.BurstCapacity)
		if s.RateLimit.ByAPIKey {
			fmt.Println("  - Per API key rate limiting enabled")
		}
		if s.RateLimit.ByIP {
			fmt.Println("  - Per IP address rate limiting enabled")
		}
	} else {
		fmt.Println("Rate limiting: DISABLED")
	}
}
