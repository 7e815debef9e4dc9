package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// statusPageHandler serves a minimal landing page so hitting the root in a
// browser shows something useful instead of a 404.
func (s *Server) statusPageHandler(c *gin.Context) {
	c.Header("Content-Type", "text/html; charset=utf-8")
	c.String(http.StatusOK, statusPageHTML)
}

const statusPageHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>QuillBill API</title>
<style>
  body { font-family: -apple-system, 'Segoe UI', sans-serif; background: #f8f9fa; color: #2c3e50; max-width: 640px; margin: 60px auto; padding: 0 20px; }
  h1 { color: #1e3a5f; }
  code { background: #eef2f7; padding: 2px 6px; border-radius: 4px; }
  li { margin: 6px 0; }
  .muted { color: #7f8c8d; }
</style>
</head>
<body>
<h1>QuillBill</h1>
<p>Invoicing API for freelancers. All endpoints except signup and the Stripe
webhook require an API token via <code>Authorization: Bearer &lt;token&gt;</code>.</p>
<ul>
  <li><code>POST /v1/signup</code> &mdash; create an account, returns your API token</li>
  <li><code>GET /v1/me</code> &mdash; account and plan profile</li>
  <li><code>GET|POST /v1/clients</code> &mdash; client book</li>
  <li><code>GET|POST /v1/invoices</code> &mdash; invoices</li>
  <li><code>POST /v1/invoices/draft</code> &mdash; draft an invoice from plain text</li>
  <li><code>GET /v1/invoices/:id/pdf</code> &mdash; download as PDF</li>
  <li><code>GET /v1/templates</code> &mdash; template catalog</li>
  <li><code>GET /v1/billing/subscription</code> &mdash; plan, status and limits</li>
  <li><code>GET /ws?token=...</code> &mdash; live event feed</li>
</ul>
<p class="muted">Health: <a href="/health">/health</a> &middot; Metrics: <a href="/metrics">/metrics</a> &middot; API info: <a href="/api">/api</a></p>
</body>
</html>
`
