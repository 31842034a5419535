package main

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/bsm/redislock"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/wjz5788/liqpass-1usd-accelerator-sub001/config"
	"github.com/wjz5788/liqpass-1usd-accelerator-sub001/models"
	"github.com/wjz5788/liqpass-1usd-accelerator-sub001/utils"
	"github.com/wjz5788/liqpass-1usd-accelerator-sub001/workflow"
)

func onchainTriggerHandler(oracle workflow.Oracle) gin.HandlerFunc {
	return func(c *gin.Context) {
		logger := config.GetLogger()

		var req workflow.TriggerRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		db := config.GetDB()
		if db == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "db is nil"})
			return
		}

		// Best-effort per-order lock to avoid two in-flight verifications
		// holding connections for the same order. Correctness never depends on
		// it: the natural-key upsert and conditional transitions already make
		// concurrent deliveries collapse safely.
		var lock *redislock.Lock
		if redisLock := config.GetRedisLock(); redisLock != nil {
			obtained, err := redisLock.Obtain(c.Request.Context(), fmt.Sprintf("lock:claim:%s", req.PurchaseOrderId), 30*time.Second, nil)
			if err == nil {
				lock = obtained
			} else if err != redislock.ErrNotObtained {
				logger.WithFields(logrus.Fields{
					"field":             "onchainTriggerHandler",
					"purchase_order_id": req.PurchaseOrderId,
				}).Warn("error obtaining redis lock; proceeding without it: " + err.Error())
			}
		}
		defer func() {
			if lock == nil {
				return
			}
			if releaseErr := lock.Release(c.Request.Context()); releaseErr != nil {
				logger.WithFields(logrus.Fields{
					"field":             "onchainTriggerHandler",
					"purchase_order_id": req.PurchaseOrderId,
				}).Warn("failed to release redis lock: " + releaseErr.Error())
			}
		}()

		result, err := workflow.ProcessOnchainTrigger(c.Request.Context(), db, logger, oracle, req)
		if err != nil {
			if errors.Is(err, workflow.ErrInvalidTriggerRequest) {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			if errors.Is(err, utils.ErrorRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "purchase order not found"})
				return
			}
			if errors.Is(err, workflow.ErrOrderNotClaimable) {
				c.JSON(http.StatusConflict, gin.H{"error": "purchase order is unpaid or has no coverage window"})
				return
			}
			config.LogError(logger, "claims_handlers.go", "onchainTriggerHandler", "ProcessOnchainTrigger", req, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}

		// Business outcomes (including REJECTED and FAILED) are always 200.
		c.JSON(http.StatusOK, result)
	}
}

func adminListClaimsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		db := config.GetDB()
		if db == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "db is nil"})
			return
		}

		status, ok := models.ParseClaimStatus(c.Query("status"))
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "valid status query parameter is required"})
			return
		}
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))
		offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

		claims, err := workflow.ListClaims(c.Request.Context(), db, status, limit, offset)
		if err != nil {
			config.LogError(config.GetLogger(), "claims_handlers.go", "adminListClaimsHandler", "ListClaims", status, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"claims": claims, "count": len(claims)})
	}
}

func adminGetClaimHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		db := config.GetDB()
		if db == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "db is nil"})
			return
		}

		claimId, err := strconv.Atoi(c.Param("id"))
		if err != nil || claimId <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid claim id"})
			return
		}

		claim, err := workflow.GetClaim(c.Request.Context(), db, claimId)
		if err != nil {
			respondAdminError(c, err)
			return
		}
		c.JSON(http.StatusOK, claim)
	}
}

type approveClaimRequest struct {
	ApprovedBy string `json:"approved_by"`
}

func adminApproveClaimHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		db := config.GetDB()
		if db == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "db is nil"})
			return
		}

		claimId, err := strconv.Atoi(c.Param("id"))
		if err != nil || claimId <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid claim id"})
			return
		}

		var req approveClaimRequest
		_ = c.ShouldBindJSON(&req)
		approvedBy := req.ApprovedBy
		if approvedBy == "" {
			approvedBy, _ = utils.GetAdminActorFromContext(c.Request.Context())
		}

		claim, err := workflow.ApproveClaim(c.Request.Context(), db, config.GetLogger(), claimId, approvedBy)
		if err != nil {
			respondAdminError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true, "claim_id": claim.ID, "status": claim.Status})
	}
}

type rejectClaimRequest struct {
	Reason string `json:"reason" binding:"required"`
}

func adminRejectClaimHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		db := config.GetDB()
		if db == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "db is nil"})
			return
		}

		claimId, err := strconv.Atoi(c.Param("id"))
		if err != nil || claimId <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid claim id"})
			return
		}

		var req rejectClaimRequest
		if err := c.ShouldBindJSON(&req); err != nil || req.Reason == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "reason is required"})
			return
		}

		claim, err := workflow.RejectClaim(c.Request.Context(), db, config.GetLogger(), claimId, req.Reason)
		if err != nil {
			respondAdminError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true, "claim_id": claim.ID, "status": claim.Status})
	}
}

type markPaidRequest struct {
	MultisigTxHash string `json:"multisig_tx_hash" binding:"required"`
	PaidAtSec      int64  `json:"paid_at_sec" binding:"required"`
}

func adminMarkPaidHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		db := config.GetDB()
		if db == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "db is nil"})
			return
		}

		claimId, err := strconv.Atoi(c.Param("id"))
		if err != nil || claimId <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid claim id"})
			return
		}

		var req markPaidRequest
		if err := c.ShouldBindJSON(&req); err != nil || req.MultisigTxHash == "" || req.PaidAtSec <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "multisig_tx_hash and paid_at_sec are required"})
			return
		}

		claim, err := workflow.MarkClaimPaid(c.Request.Context(), db, config.GetLogger(), claimId, req.MultisigTxHash, time.Unix(req.PaidAtSec, 0))
		if err != nil {
			respondAdminError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"ok":               true,
			"claim_id":         claim.ID,
			"status":           claim.Status,
			"multisig_tx_hash": claim.MultisigTxHash,
			"paid_at":          claim.PaidAt,
		})
	}
}

func respondAdminError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, utils.ErrorRecordNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "claim not found"})
	case errors.Is(err, utils.ErrTransitionConflict):
		c.JSON(http.StatusConflict, gin.H{"error": "claim status changed; transition not applied"})
	default:
		config.LogError(config.GetLogger(), "claims_handlers.go", "respondAdminError", "admin transition", nil, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
