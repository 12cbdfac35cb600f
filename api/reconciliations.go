/*
Copyright 2024 Blnk Finance Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package api

import (
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	conciliacion "github.com/Dussand/conciliacion-Gmoney"
	model2 "github.com/Dussand/conciliacion-Gmoney/api/model"
	"github.com/Dussand/conciliacion-Gmoney/internal/apierror"
)

const (
	// OperatorHeader names the person who ran the reconciliation.
	OperatorHeader = "X-Operator"

	ledgerField   = "ledger_file"
	providerField = "provider_file"
	xlsxMediaType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

func respondError(c *gin.Context, err error) {
	apiErr := apierror.FromError(err)
	body := gin.H{"error": apiErr.Message, "code": apiErr.Code}
	if apiErr.Details != nil && apiErr.Code == apierror.ErrSchema {
		body["details"] = apiErr.Details
	}
	c.JSON(apierror.MapErrorToHTTPStatus(apiErr), body)
}

func formFile(c *gin.Context, field string) (multipart.File, string) {
	file, header, err := c.Request.FormFile(field)
	if err != nil {
		return nil, ""
	}
	return file, header.Filename
}

// CreateReconciliation runs a reconciliation of the two uploaded exports and answers
// with the full report.
func (a Api) CreateReconciliation(c *gin.Context) {
	ledger, ledgerName := formFile(c, ledgerField)
	if ledger != nil {
		defer ledger.Close()
	}
	provider, providerName := formFile(c, providerField)
	if provider != nil {
		defer provider.Close()
	}

	upload := model2.ReconcileUpload{
		Operator:     c.GetHeader(OperatorHeader),
		LedgerName:   ledgerName,
		ProviderName: providerName,
	}
	if err := upload.ValidateUpload(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	report, err := a.svc.Reconcile(c.Request.Context(), conciliacion.RunInput{
		Operator:     upload.Operator,
		LedgerFile:   ledgerName,
		Ledger:       ledger,
		ProviderFile: providerName,
		Provider:     provider,
	})
	if err != nil {
		logrus.WithFields(logrus.Fields{"operator": upload.Operator, "error": err}).Error("reconciliation failed")
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, report)
}

func (a Api) ListReconciliations(c *gin.Context) {
	var query model2.ListRunsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}
	if err := query.ValidateListRuns(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	runs, err := a.svc.ListRuns(c.Request.Context(), query.Operator, query.Limit, query.Offset)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, runs)
}

func (a Api) GetReconciliation(c *gin.Context) {
	id, passed := c.Params.Get("id")
	if !passed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id is required. pass id in the route /:id"})
		return
	}

	run, err := a.svc.GetRun(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, run)
}

// GetReport returns the discrepancy report of a run while it is still cached.
func (a Api) GetReport(c *gin.Context) {
	report, err := a.svc.GetReport(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, report)
}

// ExportReport downloads the report of a run as a workbook.
func (a Api) ExportReport(c *gin.Context) {
	id := c.Param("id")
	data, err := a.svc.ExportReport(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.Header("Content-Disposition", "attachment; filename="+model2.ExportFilename(id))
	c.Data(http.StatusOK, xlsxMediaType, data)
}
