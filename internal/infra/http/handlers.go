package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"sealtrack/internal/domain"
	"sealtrack/internal/usecase"
)

type errorResponse struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

type signerRequest struct {
	Name          string `json:"name"`
	Email         string `json:"email"`
	WalletAddress string `json:"wallet_address,omitempty"`
}

type createDocumentRequest struct {
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Content     string          `json:"content"`
	TemplateID  string          `json:"template_id,omitempty"`
	Signers     []signerRequest `json:"signers"`
}

type updateDocumentRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Content     *string `json:"content"`
}

type signRequest struct {
	SignatureDataURL  string `json:"signature_data_url"`
	SignatureHash     string `json:"signature_hash"`
	SignedFingerprint string `json:"signed_fingerprint,omitempty"`
}

type anchorResponse struct {
	Provider    string `json:"provider"`
	Status      string `json:"status"`
	ErrorCode   string `json:"error_code,omitempty"`
	Message     string `json:"message,omitempty"`
	PayloadHash string `json:"payload_hash,omitempty"`
	TxHash      string `json:"tx_hash,omitempty"`
	ChainID     string `json:"chain_id,omitempty"`
	BlockNumber uint64 `json:"block_number,omitempty"`
	RecordError string `json:"record_error,omitempty"`
	CreatedAt   string `json:"created_at,omitempty"`
}

type signResponse struct {
	Document  domain.Document `json:"document"`
	SignerID  string          `json:"signer_id"`
	Completed bool            `json:"completed"`
	Anchor    *anchorResponse `json:"anchor,omitempty"`
	Archive   string          `json:"archive,omitempty"`
	Warnings  []string        `json:"warnings,omitempty"`
}

type verifyResponse struct {
	Status         string     `json:"status"`
	IsAuthentic    *bool      `json:"is_authentic,omitempty"`
	LastVerifiedAt *time.Time `json:"last_verified_at,omitempty"`
}

type ledgerStatusResponse struct {
	Provider        string `json:"provider"`
	ContractAddress string `json:"contract_address,omitempty"`
	ChainID         string `json:"chain_id,omitempty"`
	Exists          bool   `json:"exists"`
	SignerAddress   string `json:"signer_address,omitempty"`
	BalanceWei      string `json:"balance_wei,omitempty"`
}

type ledgerRecordResponse struct {
	DocumentID string    `json:"document_id"`
	Hash       string    `json:"hash"`
	Creator    string    `json:"creator"`
	Timestamp  time.Time `json:"timestamp"`
}

func (s *Server) handleListTemplates(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"templates": s.documents.Templates()})
}

func (s *Server) handleCreateDocument(c *gin.Context) {
	var req createDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_JSON", "invalid json")
		return
	}
	signers := make([]usecase.SignerInput, 0, len(req.Signers))
	for _, in := range req.Signers {
		signers = append(signers, usecase.SignerInput(in))
	}
	doc, err := s.documents.Create(c.Request.Context(), usecase.CreateDocumentRequest{
		Principal:   getPrincipal(c),
		Title:       req.Title,
		Description: req.Description,
		Content:     req.Content,
		TemplateID:  req.TemplateID,
		Signers:     signers,
	})
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, doc)
}

func (s *Server) handleListDocuments(c *gin.Context) {
	docs, err := s.documents.List(c.Request.Context(), getPrincipal(c))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"documents": docs})
}

func (s *Server) handleGetDocument(c *gin.Context) {
	doc, err := s.documents.Get(c.Request.Context(), getPrincipal(c), c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, doc)
}

func (s *Server) handleUpdateDocument(c *gin.Context) {
	var req updateDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_JSON", "invalid json")
		return
	}
	doc, err := s.documents.Update(c.Request.Context(), usecase.UpdateDocumentRequest{
		Principal:   getPrincipal(c),
		DocumentID:  c.Param("id"),
		Title:       req.Title,
		Description: req.Description,
		Content:     req.Content,
	})
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, doc)
}

func (s *Server) handleAddSigner(c *gin.Context) {
	var req signerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_JSON", "invalid json")
		return
	}
	doc, err := s.documents.AddSigner(c.Request.Context(), getPrincipal(c), c.Param("id"), usecase.SignerInput(req))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, doc)
}

func (s *Server) handleReject(c *gin.Context) {
	doc, err := s.documents.Reject(c.Request.Context(), getPrincipal(c), c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, doc)
}

func (s *Server) handleFingerprint(c *gin.Context) {
	fingerprint, err := s.documents.Fingerprint(c.Request.Context(), getPrincipal(c), c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"document_id": c.Param("id"), "fingerprint": fingerprint})
}

func (s *Server) handleSign(c *gin.Context) {
	if s.signUC == nil {
		s.writeError(c, domain.ErrNotFound)
		return
	}
	var req signRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_JSON", "invalid json")
		return
	}
	resp, err := s.signUC.Execute(c.Request.Context(), usecase.SignDocumentRequest{
		Principal:         getPrincipal(c),
		DocumentID:        c.Param("id"),
		SignatureDataURL:  req.SignatureDataURL,
		SignatureHash:     req.SignatureHash,
		SignedFingerprint: req.SignedFingerprint,
	})
	if err != nil {
		s.writeError(c, err)
		return
	}
	if s.metrics != nil {
		s.metrics.ObserveSignature(resp.Completed)
	}
	out := signResponse{
		Document:  resp.Document,
		SignerID:  resp.SignerID,
		Completed: resp.Completed,
		Archive:   resp.Archive,
		Warnings:  resp.Warnings,
	}
	if resp.Anchor != nil {
		anchor := buildAnchorResponse(*resp.Anchor)
		out.Anchor = &anchor
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) handleVerify(c *gin.Context) {
	if s.verifyUC == nil {
		s.writeError(c, domain.ErrNotFound)
		return
	}
	resp, err := s.verifyUC.Execute(c.Request.Context(), usecase.VerifyDocumentRequest{
		Principal:  getPrincipal(c),
		DocumentID: c.Param("id"),
	})
	if err != nil {
		s.writeError(c, err)
		return
	}
	if s.metrics != nil {
		s.metrics.ObserveVerification(string(resp.Status))
	}
	c.JSON(http.StatusOK, verifyResponse{
		Status:         string(resp.Status),
		IsAuthentic:    resp.IsAuthentic,
		LastVerifiedAt: resp.LastVerifiedAt,
	})
}

func (s *Server) handleListAnchors(c *gin.Context) {
	if _, err := s.documents.Get(c.Request.Context(), getPrincipal(c), c.Param("id")); err != nil {
		s.writeError(c, err)
		return
	}
	out := make([]anchorResponse, 0)
	if s.anchors != nil {
		attempts, err := s.anchors.ListAttempts(c.Request.Context(), c.Param("id"))
		if err != nil {
			s.writeError(c, err)
			return
		}
		for _, a := range attempts {
			out = append(out, anchorResponse{
				Provider:    a.Provider,
				Status:      a.Status,
				ErrorCode:   a.ErrorCode,
				Message:     a.Message,
				PayloadHash: a.PayloadHash,
				TxHash:      a.TxHash,
				ChainID:     a.ChainID,
				BlockNumber: a.BlockNumber,
				CreatedAt:   a.CreatedAt.UTC().Format(time.RFC3339Nano),
			})
		}
	}
	c.JSON(http.StatusOK, gin.H{"attempts": out})
}

// handleEvents streams document change events as server-sent events until the
// client disconnects.
func (s *Server) handleEvents(c *gin.Context) {
	if s.feed == nil {
		writeErrorCode(c, http.StatusNotFound, "NOT_FOUND", "change feed disabled")
		return
	}
	if _, err := s.documents.Get(c.Request.Context(), getPrincipal(c), c.Param("id")); err != nil {
		s.writeError(c, err)
		return
	}
	events, err := s.feed.Subscribe(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	ctx := c.Request.Context()
	for {
		select {
		case event, ok := <-events:
			if !ok {
				return
			}
			c.SSEvent(string(event.Type), event)
			c.Writer.Flush()
		case <-ctx.Done():
			return
		}
	}
}

func (s *Server) handleLedgerStatus(c *gin.Context) {
	if s.ledger == nil {
		s.writeError(c, domain.ErrLedgerUnavailable)
		return
	}
	status, err := s.ledger.Status(c.Request.Context())
	if err != nil {
		s.writeError(c, err)
		return
	}
	out := ledgerStatusResponse{
		Provider:        status.Provider,
		ContractAddress: status.ContractAddress,
		ChainID:         status.ChainID,
		Exists:          status.Exists,
		SignerAddress:   status.SignerAddress,
	}
	if status.Balance != nil {
		out.BalanceWei = status.Balance.String()
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) handleLedgerRecord(c *gin.Context) {
	if s.ledger == nil {
		s.writeError(c, domain.ErrLedgerUnavailable)
		return
	}
	if _, err := s.documents.Get(c.Request.Context(), getPrincipal(c), c.Param("id")); err != nil {
		s.writeError(c, err)
		return
	}
	record, err := s.ledger.Fetch(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, ledgerRecordResponse{
		DocumentID: record.DocumentID,
		Hash:       record.Hash,
		Creator:    record.Creator,
		Timestamp:  record.Timestamp.UTC(),
	})
}

func buildAnchorResponse(receipt domain.AnchorReceipt) anchorResponse {
	return anchorResponse{
		Provider:    receipt.Provider,
		Status:      receipt.Status,
		ErrorCode:   receipt.ErrorCode,
		Message:     receipt.Message,
		PayloadHash: receipt.PayloadHash,
		TxHash:      receipt.TxHash,
		ChainID:     receipt.ChainID,
		BlockNumber: receipt.BlockNumber,
		RecordError: receipt.RecordError,
	}
}

func (s *Server) writeError(c *gin.Context, err error) {
	var funds *domain.InsufficientFundsError
	if errors.As(err, &funds) {
		c.JSON(http.StatusConflict, errorResponse{
			Code:    "INSUFFICIENT_FUNDS",
			Message: err.Error(),
			Details: map[string]any{
				"check":         string(funds.Check),
				"balance_wei":   funds.Balance.String(),
				"required_wei":  funds.Required.String(),
				"shortfall_wei": funds.Shortfall.String(),
			},
		})
		return
	}

	status, code := http.StatusInternalServerError, "INTERNAL"
	switch {
	case errors.Is(err, domain.ErrInvalidDocument):
		status, code = http.StatusBadRequest, "INVALID_DOCUMENT"
	case errors.Is(err, domain.ErrDuplicateSigner):
		status, code = http.StatusBadRequest, "DUPLICATE_SIGNER"
	case errors.Is(err, domain.ErrInvalidSignature):
		status, code = http.StatusBadRequest, "INVALID_SIGNATURE"
	case errors.Is(err, domain.ErrUnknownTemplate):
		status, code = http.StatusBadRequest, "UNKNOWN_TEMPLATE"
	case errors.Is(err, domain.ErrUnauthorized):
		status, code = http.StatusUnauthorized, "UNAUTHORIZED"
	case errors.Is(err, domain.ErrNotASigner):
		status, code = http.StatusForbidden, "NOT_A_SIGNER"
	case errors.Is(err, domain.ErrForbidden):
		status, code = http.StatusForbidden, "FORBIDDEN"
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrSignerNotFound):
		status, code = http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, domain.ErrLedgerRecordNotFound):
		status, code = http.StatusNotFound, "LEDGER_RECORD_NOT_FOUND"
	case errors.Is(err, domain.ErrAlreadySigned):
		status, code = http.StatusConflict, "ALREADY_SIGNED"
	case errors.Is(err, domain.ErrDocumentCompleted):
		status, code = http.StatusConflict, "DOCUMENT_COMPLETED"
	case errors.Is(err, domain.ErrDocumentRejected):
		status, code = http.StatusConflict, "DOCUMENT_REJECTED"
	case errors.Is(err, domain.ErrDocumentLocked):
		status, code = http.StatusConflict, "DOCUMENT_LOCKED"
	case errors.Is(err, domain.ErrStaleDocument):
		status, code = http.StatusConflict, "STALE_DOCUMENT"
	case errors.Is(err, domain.ErrWrongNetwork):
		status, code = http.StatusBadGateway, "WRONG_NETWORK"
	case errors.Is(err, domain.ErrLedgerUnavailable):
		status, code = http.StatusServiceUnavailable, "LEDGER_UNAVAILABLE"
	case errors.Is(err, domain.ErrNoSigningIdentity):
		status, code = http.StatusServiceUnavailable, "NO_SIGNING_IDENTITY"
	case errors.Is(err, domain.ErrTransactionRejected):
		status, code = http.StatusBadGateway, "TX_REJECTED"
	case errors.Is(err, domain.ErrConfirmationTimeout), errors.Is(err, context.DeadlineExceeded):
		status, code = http.StatusGatewayTimeout, "TIMEOUT"
	}
	message := err.Error()
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed",
			zap.String("route", c.FullPath()),
			zap.Error(err))
		message = "internal error"
	}
	writeErrorCode(c, status, code, message)
}

func writeErrorCode(c *gin.Context, status int, code, message string) {
	c.JSON(status, errorResponse{
		Code:    code,
		Message: message,
	})
}
