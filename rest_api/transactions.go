package restapi

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sharedcode/tcc"
)

// Manager is the coordinator surfaced by the REST handlers. The embedding
// application wires it before building the router.
var Manager *tcc.TxManager

// Store serves the inspection endpoints. Usually the same store Manager runs on.
var Store tcc.TransactionStore

// StartTransactionRequest is the optional POST /transactions body.
type StartTransactionRequest struct {
	// TimeoutMilliseconds overrides the coordinator's try-phase budget when > 0.
	TimeoutMilliseconds int64 `json:"timeoutMilliseconds"`
	// Metadata is handed to every participant's Try.
	Metadata map[string]string `json:"metadata"`
}

// GetHealth godoc
// @Summary GetHealth returns the coordinator's self-report.
// @Schemes
// @Description GetHealth responds with instance id, participant count & metric counters as JSON.
// @Tags Transactions
// @Accept json
// @Produce json
// @Failure 503 {object} map[string]any
// @Success 200 {object} tcc.Health
// @Router /health [get]
// @Security Bearer
func GetHealth(c *gin.Context) {
	if Manager == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"message": "coordinator is not wired"})
		return
	}
	c.JSON(http.StatusOK, Manager.GetHealth())
}

// StartTransaction godoc
// @Summary StartTransaction runs one transaction across all registered participants.
// @Schemes
// @Description StartTransaction fans out the try phase and responds with the transaction id & outcome as JSON. Confirm or cancel proceeds asynchronously.
// @Tags Transactions
// @Accept json
// @Produce json
// @Param			request	body		StartTransactionRequest		false	"Optional timeout override & participant metadata"
// @Failure 400 {object} map[string]any
// @Failure 422 {object} map[string]any
// @Success 200 {object} tcc.Result
// @Router /transactions [post]
// @Security Bearer
func StartTransaction(c *gin.Context) {
	if Manager == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"message": "coordinator is not wired"})
		return
	}
	var req StartTransactionRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"message": fmt.Sprintf("bad request body, error: %v", err)})
			return
		}
	}
	opts := tcc.StartOptions{
		Timeout:  time.Duration(req.TimeoutMilliseconds) * time.Millisecond,
		Metadata: req.Metadata,
	}
	result, err := Manager.StartTransaction(c.Request.Context(), &opts)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"message": fmt.Sprintf("starting transaction failed, error: %v", err)})
		return
	}
	c.JSON(http.StatusOK, result)
}

// GetTransactionByID godoc
// @Summary GetTransactionByID returns one transaction having its id matching the id parameter.
// @Schemes
// @Description GetTransactionByID responds with the transaction's status & per-participant entries as JSON.
// @Tags Transactions
// @Accept json
// @Produce json
// @Param			id	path		int		true	"Id of transaction to fetch"
// @Failure 404 {object} map[string]any
// @Success 200 {object} tcc.Transaction
// @Router /transactions/{id} [get]
// @Security Bearer
func GetTransactionByID(c *gin.Context) {
	if Store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"message": "transaction store is not wired"})
		return
	}
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": fmt.Sprintf("bad transaction id %s", c.Param("id"))})
		return
	}
	tx, err := Store.GetTX(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"message": fmt.Sprintf("fetching transaction %d failed, error: %v", id, err)})
		return
	}
	c.JSON(http.StatusOK, tx)
}

// GetHangingTransactions godoc
// @Summary GetHangingTransactions returns the transactions still awaiting confirm or cancel.
// @Schemes
// @Description GetHangingTransactions responds with the hanging transactions, oldest first, as JSON.
// @Tags Transactions
// @Accept json
// @Produce json
// @Failure 404 {object} map[string]any
// @Success 200 {object} []tcc.Transaction
// @Router /transactions [get]
// @Security Bearer
func GetHangingTransactions(c *gin.Context) {
	if Store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"message": "transaction store is not wired"})
		return
	}
	txs, err := Store.GetHangingTXs(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"message": fmt.Sprintf("fetching hanging transactions failed, error: %v", err)})
		return
	}
	c.JSON(http.StatusOK, txs)
}
