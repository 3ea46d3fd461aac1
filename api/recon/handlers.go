package recon

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"StayLedger/api/recon/parser"
	"StayLedger/internal/logger"
)

const dateFormat = "2006-01-02"

// importRequest is the validated common input of preview and confirm.
type importRequest struct {
	platform   parser.Platform
	orgID      string
	propertyID string
	fileBytes  []byte
	fileName   string
	rows       [][]string
}

func parseImportRequest(r *http.Request) (*importRequest, string) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		return nil, "failed to parse multipart form"
	}
	platformStr := r.FormValue("platform")
	platform, ok := parser.ResolvePlatform(platformStr)
	if !ok {
		return nil, "unsupported platform: " + platformStr
	}
	propertyID := strings.TrimSpace(r.FormValue("property_id"))
	if propertyID == "" {
		return nil, "property_id required"
	}
	orgID := strings.TrimSpace(r.FormValue("organisation_id"))
	if orgID == "" {
		return nil, "organisation_id required"
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, "missing 'file' field"
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil || len(data) == 0 {
		return nil, "failed to read uploaded file"
	}
	rows, err := ReadTabular(data, header.Filename)
	if err != nil {
		return nil, "could not read file: " + err.Error()
	}
	return &importRequest{
		platform:   platform,
		orgID:      orgID,
		propertyID: propertyID,
		fileBytes:  data,
		fileName:   header.Filename,
		rows:       rows,
	}, ""
}

func writeJSON(w http.ResponseWriter, payload map[string]interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(payload)
}

// internalError hides details from the caller; they go to the server log.
func internalError(w http.ResponseWriter, context string, err error) {
	if logger.GlobalLogger != nil {
		logger.GlobalLogger.LogError(context, err)
	}
	http.Error(w, "import failed", http.StatusInternalServerError)
}

func archiveAsync(req *importRequest) {
	if !IsArchiveEnabled() {
		return
	}
	hash := FileHash(req.fileBytes)
	key := BuildArchiveKey(req.propertyID, hash, filepath.Ext(req.fileName))
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if _, err := ArchiveStatement(ctx, key, req.fileBytes); err != nil {
			if logger.GlobalLogger != nil {
				logger.GlobalLogger.LogError("statement archive", err)
			}
		}
	}()
}

func fmtDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(dateFormat)
}

// ImportPreviewHandler parses the uploaded file, matches payouts against the
// property's unreconciled bank transactions, and returns the proposed
// matches. No writes.
func ImportPreviewHandler(wf *Workflow) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
			return
		}
		req, msg := parseImportRequest(r)
		if msg != "" {
			http.Error(w, msg, http.StatusBadRequest)
			return
		}

		preview, err := wf.Preview(r.Context(), req.orgID, req.propertyID, req.platform, req.rows)
		if err != nil {
			var badFile *BadFileError
			if errors.As(err, &badFile) {
				http.Error(w, badFile.Msg, http.StatusUnprocessableEntity)
				return
			}
			internalError(w, "import preview", err)
			return
		}
		archiveAsync(req)
		if logger.GlobalLogger != nil {
			logger.GlobalLogger.LogImport("preview", req.propertyID, string(req.platform),
				FileHash(req.fileBytes), len(preview.Payouts), preview.BookingCount)
		}

		writeJSON(w, map[string]interface{}{
			"success":       true,
			"platform":      preview.Platform,
			"period_start":  fmtDate(preview.PeriodStart),
			"period_end":    fmtDate(preview.PeriodEnd),
			"total_gross":   preview.TotalGross.StringFixed(2),
			"total_net":     preview.TotalNet.StringFixed(2),
			"booking_count": preview.BookingCount,
			"payouts":       preview.Payouts,
			"matches":       preview.Matches,
			"transactions":  preview.Transactions,
			"skipped_rows":  preview.SkippedRows,
			"warnings":      preview.Warnings,
		})
	}
}

// ImportConfirmHandler persists the payouts the caller selected in preview.
// selected_keys is a JSON array of statement keys; match_map a JSON object
// of statement key to bank transaction id.
func ImportConfirmHandler(wf *Workflow) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
			return
		}
		req, msg := parseImportRequest(r)
		if msg != "" {
			http.Error(w, msg, http.StatusBadRequest)
			return
		}

		var selectedKeys []string
		if raw := r.FormValue("selected_keys"); raw != "" {
			if err := json.Unmarshal([]byte(raw), &selectedKeys); err != nil {
				http.Error(w, "selected_keys must be a JSON array of statement keys", http.StatusBadRequest)
				return
			}
		}
		matchMap := map[string]string{}
		if raw := r.FormValue("match_map"); raw != "" {
			if err := json.Unmarshal([]byte(raw), &matchMap); err != nil {
				http.Error(w, "match_map must be a JSON object of key to bank transaction id", http.StatusBadRequest)
				return
			}
		}
		if parser.IsOTA(req.platform) && len(selectedKeys) == 0 {
			http.Error(w, "selected_keys required for payout confirm", http.StatusBadRequest)
			return
		}

		confirm, err := wf.Confirm(r.Context(), req.orgID, req.propertyID, req.platform, req.rows, selectedKeys, matchMap)
		if err != nil {
			var badFile *BadFileError
			if errors.As(err, &badFile) {
				http.Error(w, badFile.Msg, http.StatusUnprocessableEntity)
				return
			}
			internalError(w, "import confirm", err)
			return
		}
		archiveAsync(req)
		if logger.GlobalLogger != nil {
			logger.GlobalLogger.LogImport("confirm", req.propertyID, string(req.platform),
				FileHash(req.fileBytes), confirm.PayoutsCreated, confirm.ItemsCreated)
		}

		writeJSON(w, map[string]interface{}{
			"success":              true,
			"platform":             req.platform,
			"period_start":         fmtDate(confirm.PeriodStart),
			"period_end":           fmtDate(confirm.PeriodEnd),
			"total_gross":          confirm.TotalGross.StringFixed(2),
			"total_net":            confirm.TotalNet.StringFixed(2),
			"booking_count":        confirm.BookingCount,
			"payouts_created":      confirm.PayoutsCreated,
			"items_created":        confirm.ItemsCreated,
			"items_matched":        confirm.ItemsMatched,
			"transactions_created": confirm.TransactionsCreated,
			"results":              confirm.Outcomes,
			"warnings":             confirm.Warnings,
		})
	}
}

// LeakageReportHandler computes leakage over persisted payouts on demand.
func LeakageReportHandler(rep *Reporter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
			return
		}
		propertyID := strings.TrimSpace(r.URL.Query().Get("property_id"))
		orgID := strings.TrimSpace(r.URL.Query().Get("organisation_id"))
		if propertyID == "" || orgID == "" {
			http.Error(w, "property_id and organisation_id required", http.StatusBadRequest)
			return
		}
		to := time.Now()
		from := to.AddDate(0, -3, 0)
		if s := r.URL.Query().Get("from"); s != "" {
			t, err := time.Parse(dateFormat, s)
			if err != nil {
				http.Error(w, "from must be YYYY-MM-DD", http.StatusBadRequest)
				return
			}
			from = t
		}
		if s := r.URL.Query().Get("to"); s != "" {
			t, err := time.Parse(dateFormat, s)
			if err != nil {
				http.Error(w, "to must be YYYY-MM-DD", http.StatusBadRequest)
				return
			}
			// Inclusive end of day.
			to = t.Add(24*time.Hour - time.Second)
		}

		rowsOut, err := rep.LeakageByProperty(r.Context(), orgID, propertyID, from, to)
		if err != nil {
			internalError(w, "leakage report", err)
			return
		}
		writeJSON(w, map[string]interface{}{
			"success": true,
			"data":    rowsOut,
			"count":   len(rowsOut),
		})
	}
}
