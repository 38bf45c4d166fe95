package server

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	invoicedomain "github.com/smallbiznis/qrdine/internal/invoice/domain"
	invoiceservice "github.com/smallbiznis/qrdine/internal/invoice/service"
)

func (s *Server) GenerateInvoice(c *gin.Context) {
	res, err := s.invoiceSvc.GenerateForOrder(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	status := http.StatusCreated
	if res.AlreadyIssued {
		status = http.StatusOK
	}
	c.JSON(status, gin.H{"data": res})
}

func (s *Server) GetInvoiceByID(c *gin.Context) {
	item, err := s.invoiceSvc.GetByID(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": item})
}

func (s *Server) ListInvoices(c *gin.Context) {
	var req invoicedomain.ListInvoiceRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.RestaurantID = strings.TrimSpace(c.Param("restaurantId"))

	resp, err := s.invoiceSvc.List(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp.Invoices, "page_info": resp.PageInfo})
}

func (s *Server) RenderInvoice(c *gin.Context) {
	html, err := s.invoiceSvc.RenderHTML(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(html))
}

// ExportGSTSales returns the sales register for [from, to) as CSV, or JSON
// when format=json.
func (s *Server) ExportGSTSales(c *gin.Context) {
	from, err := parseDate(c.Query("from"), false)
	if err != nil {
		AbortWithError(c, newValidationError("from", "invalid_from", "from must be a date"))
		return
	}
	to, err := parseDate(c.Query("to"), true)
	if err != nil {
		AbortWithError(c, newValidationError("to", "invalid_to", "to must be a date"))
		return
	}

	restaurantID := strings.TrimSpace(c.Param("restaurantId"))
	rows, err := s.invoiceSvc.GSTSales(c.Request.Context(), invoicedomain.GSTSalesRequest{
		RestaurantID: restaurantID,
		From:         from,
		To:           to,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if strings.EqualFold(strings.TrimSpace(c.Query("format")), "json") {
		c.JSON(http.StatusOK, gin.H{"data": rows})
		return
	}

	filename := fmt.Sprintf("gst-sales-%s-%s.csv", from.Format(dateOnlyLayout), to.AddDate(0, 0, -1).Format(dateOnlyLayout))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Status(http.StatusOK)
	if err := invoiceservice.WriteGSTSalesCSV(c.Writer, rows); err != nil {
		_ = c.Error(err)
	}
}
