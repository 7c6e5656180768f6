package monitor

import (
	"bytes"
	"html/template"
	"net/http"

	"bom-analytics-helper/services"
	"bom-analytics-helper/utils"

	"github.com/gin-gonic/gin"
)

const (
	ScriptPath  = "/assets/js/analytics-status.js"
	ActionsBase = "/api/v1/analytics"
)

// PageData is what the status page renders.
type PageData struct {
	Dashboard   *services.Dashboard
	Nonce       string
	ActionsBase string
	ScriptPath  string
}

var funcs = template.FuncMap{
	"count":    func(n int64) string { return utils.FormatCount(n) },
	"intcount": func(n int) string { return utils.FormatCount(n) },
	"qty":      utils.FormatQty,
	"percent":  utils.FormatPercent,
	"humanize": utils.HumanizeSlug,
	"datetime": utils.FormatDateTime,
	"deref": func(s *string) string {
		if s == nil {
			return ""
		}
		return *s
	},
}

var page = template.Must(template.New("status").Funcs(funcs).Parse(statusPageHTML))

// Render writes the status page.
func Render(c *gin.Context, data PageData) {
	if data.ActionsBase == "" {
		data.ActionsBase = ActionsBase
	}
	if data.ScriptPath == "" {
		data.ScriptPath = ScriptPath
	}
	var buf bytes.Buffer
	if err := page.Execute(&buf, data); err != nil {
		c.String(http.StatusInternalServerError, "failed to render status page: %v", err)
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", buf.Bytes())
}

// RegisterAssets serves the status page script.
func RegisterAssets(router gin.IRoutes) {
	router.GET(ScriptPath, func(c *gin.Context) {
		c.Data(http.StatusOK, "application/javascript; charset=utf-8", []byte(statusPageJS))
	})
}

const statusPageHTML = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8" />
  <meta name="viewport" content="width=device-width, initial-scale=1.0" />
  <title>BOM Analytics Status</title>
  <style>
    body {
      background: #f0f0f1;
      color: #1d2327;
      font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, Oxygen, Ubuntu, Cantarell, sans-serif;
      margin: 0;
      padding: 20px;
    }

    .wrap {
      max-width: 1100px;
      margin: 0 auto;
    }

    .status-section {
      background: #fff;
      border: 1px solid #c3c4c7;
      border-radius: 4px;
      padding: 1rem 1.5rem;
      margin-bottom: 1.5rem;
    }

    table {
      width: 100%;
      border-collapse: collapse;
    }

    th, td {
      text-align: left;
      padding: 8px 10px;
      border-bottom: 1px solid #f0f0f1;
    }

    .indicator.success { color: #00a32a; font-weight: 700; }
    .indicator.error { color: #d63638; font-weight: 700; }

    .progress-bar {
      background: #f0f0f1;
      border-radius: 3px;
      height: 10px;
      overflow: hidden;
      max-width: 400px;
    }

    .progress-fill {
      background: #2271b1;
      height: 100%;
      transition: width 0.3s ease;
    }

    .badge {
      background: #f0f6fc;
      border: 1px solid #c5d9ed;
      border-radius: 3px;
      padding: 2px 6px;
      font-size: 0.85em;
    }

    .notice { padding: 0.5rem 1rem; border-left: 4px solid #72aee6; }
    .notice-success { border-left-color: #00a32a; }
    .notice-error { border-left-color: #d63638; }

    button {
      padding: 6px 12px;
      margin-right: 8px;
      cursor: pointer;
    }
  </style>
</head>
<body>
<div class="wrap">
  <h1>BOM Analytics Integration Status</h1>

  <div class="status-section">
    <h2>Integration Health</h2>
    <table>
      <tbody>
      {{- range .Dashboard.Checks}}
        <tr>
          <td style="width: 50px;"><span class="indicator {{if .Status}}success{{else}}error{{end}}">{{if .Status}}&check;{{else}}&cross;{{end}}</span></td>
          <td><strong>{{.Label}}</strong></td>
          <td>{{.Message}}</td>
        </tr>
      {{- end}}
      </tbody>
    </table>
  </div>

  <div class="status-section">
    <h2>Sync Statistics</h2>
    <table>
      <tbody>
        <tr><th>Total BOM Records:</th><td id="total-boms">{{count .Dashboard.Sync.TotalBOMs}}</td></tr>
        <tr><th>Synced to Analytics:</th><td id="synced-boms">{{count .Dashboard.Sync.SyncedBOMs}}</td></tr>
        <tr>
          <th>Sync Coverage:</th>
          <td id="sync-coverage">
            <strong>{{percent .Dashboard.Sync.SyncPercent}}%</strong>
            <div class="progress-bar"><div class="progress-fill" style="width: {{percent .Dashboard.Sync.SyncPercent}}%;"></div></div>
          </td>
        </tr>
      </tbody>
    </table>
  </div>

  {{- with .Dashboard.Backfill}}
  <div class="status-section">
    <h2>Historical Data Backfill</h2>
    <table>
      <tbody>
        <tr><th>Status:</th><td><span class="backfill-status {{.Status}}" data-status="{{.Status}}">{{.StatusLabel}}</span></td></tr>
        {{- if ne .Status "idle"}}
        <tr>
          <th>Progress:</th>
          <td>
            <span id="backfill-progress-text">{{.Processed}} / {{.Total}} orders ({{percent .Percent}}%)</span>
            <div class="progress-bar" style="margin-top: 8px;"><div class="progress-fill" id="backfill-progress-bar" style="width: {{percent .Percent}}%;"></div></div>
          </td>
        </tr>
        {{- if .Started}}<tr><th>Started:</th><td>{{deref .Started}}</td></tr>{{end}}
        {{- if .Completed}}<tr><th>Completed:</th><td>{{deref .Completed}}</td></tr>{{end}}
        {{- end}}
      </tbody>
    </table>
  </div>
  {{- end}}

  {{- if .Dashboard.RecentBOMs}}
  <div class="status-section">
    <h2>Recently Synced BOMs</h2>
    <p>Use these to verify BOMs appear in WooCommerce Analytics:</p>
    <table>
      <thead>
        <tr><th>Product ID</th><th>Product Name</th><th>Product Type</th><th>Order</th><th>Quantity</th><th>Date</th></tr>
      </thead>
      <tbody>
      {{- range .Dashboard.RecentBOMs}}
        <tr>
          <td><strong>{{.ProductID}}</strong></td>
          <td>{{.ProductName}}</td>
          <td><span class="badge">{{humanize .ProductType}}</span></td>
          <td>#{{.OrderID}}</td>
          <td>{{qty .ProductQty}}</td>
          <td>{{datetime .DateCreated}}</td>
        </tr>
      {{- end}}
      </tbody>
    </table>
  </div>
  {{- end}}

  <div class="status-section">
    <h2>Actions</h2>
    <p>
      <button type="button" id="backfill-btn">Run Historical Backfill</button>
      <button type="button" id="test-sync-btn">Test Sync (Latest Order)</button>
      <button type="button" id="clear-analytics-btn">Clear BOM Analytics</button>
    </p>
    <div id="action-result" class="notice" style="display: none;"></div>
  </div>

  <div class="status-section">
    <h2>Troubleshooting</h2>
    <ul>
      <li>If sync coverage is low, run the historical backfill.</li>
      <li>Test sync will process the most recent order to verify integration.</li>
      <li>Clear analytics will remove all BOM data from WooCommerce Analytics (can be restored with backfill).</li>
    </ul>
  </div>
</div>
<script>
  window.bomAnalytics = {
    nonce: {{.Nonce}},
    actionsBase: {{.ActionsBase}}
  };
</script>
<script src="{{.ScriptPath}}"></script>
</body>
</html>`
