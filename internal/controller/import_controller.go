// internal/controller/import_controller.go
package controller

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/telinga/telinga-backend/internal/model"
	"github.com/telinga/telinga-backend/internal/service"
)

const maxImportUpload = 10 << 20 // 10 MiB

var errMissingHeader = errors.New("csv file has no header row")

// ImportController handles batch customer uploads: a CSV of customers plus a
// message template and a delivery time.
type ImportController struct {
	SchedulerService *service.SchedulerService
	Logger           *zap.Logger
}

// csvColumns maps recognized header names to Customer fields.
var csvColumns = map[string]func(c *model.Customer, v string){
	"phone_number": func(c *model.Customer, v string) { c.Phone = v },
	"email":        func(c *model.Customer, v string) { c.Email = v },
	"first_name":   func(c *model.Customer, v string) { c.FirstName = v },
	"last_name":    func(c *model.Customer, v string) { c.LastName = v },
}

// UploadBatch accepts a multipart form with a "file" CSV part, a "message"
// template and a "delivery_time" ("now" or RFC3339). Rows are processed
// independently; the response reports acceptance per row.
func (c *ImportController) UploadBatch(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxImportUpload); err != nil {
		http.Error(w, "invalid multipart body", http.StatusBadRequest)
		return
	}

	template := r.FormValue("message")
	if template == "" {
		http.Error(w, "message template is required", http.StatusBadRequest)
		return
	}

	sendAt := time.Now()
	if raw := r.FormValue("delivery_time"); raw != "" && raw != "now" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			http.Error(w, "delivery_time must be \"now\" or RFC3339", http.StatusBadRequest)
			return
		}
		sendAt = parsed
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "file part is required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	customers, err := parseCustomerCSV(file)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	results := c.SchedulerService.ImportBatch(customers, template, sendAt, accountIDFrom(r))

	accepted := 0
	for _, res := range results {
		if res.Accepted {
			accepted++
		}
	}
	c.Logger.Info("batch import processed",
		zap.Int("rows", len(results)),
		zap.Int("accepted", accepted))

	json.NewEncoder(w).Encode(map[string]interface{}{
		"rows":     len(results),
		"accepted": accepted,
		"results":  results,
	})
}

// parseCustomerCSV reads a header row then one customer per line. Unknown
// columns are ignored so exports from other tools work unmodified.
func parseCustomerCSV(r io.Reader) ([]model.Customer, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, errMissingHeader
	}
	setters := make([]func(c *model.Customer, v string), len(header))
	for i, name := range header {
		setters[i] = csvColumns[strings.ToLower(strings.TrimSpace(name))]
	}

	var customers []model.Customer
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		var customer model.Customer
		for i, value := range record {
			if i < len(setters) && setters[i] != nil {
				setters[i](&customer, strings.TrimSpace(value))
			}
		}
		customers = append(customers, customer)
	}
	return customers, nil
}

// accountIDFrom will read the authenticated account once auth middleware
// lands; until then every request belongs to the default account.
func accountIDFrom(_ *http.Request) int {
	return 1
}
