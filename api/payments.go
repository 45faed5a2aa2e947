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
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/payflowhq/payflow"
	model2 "github.com/payflowhq/payflow/api/model"
	"github.com/payflowhq/payflow/internal/apierror"
)

func abortWithError(c *gin.Context, err error) {
	apiErr := apierror.FromError(err)
	c.JSON(apierror.MapErrorToHTTPStatus(apiErr), apiErr)
}

// InitiatePayment answers 201 for a new payment and 200 when the idempotency
// key was already used.
func (a Api) InitiatePayment(c *gin.Context) {
	var newPayment model2.CreatePayment
	if err := c.ShouldBindJSON(&newPayment); err != nil {
		c.JSON(http.StatusBadRequest, apierror.NewAPIError(apierror.ErrBadRequest, "invalid request body", err.Error()))
		return
	}

	if err := newPayment.ValidateCreatePayment(); err != nil {
		c.JSON(http.StatusBadRequest, apierror.NewAPIError(apierror.ErrInvalidInput, "invalid payment request", err))
		return
	}

	req := newPayment.ToPaymentRequest(c.GetHeader(model2.IdempotencyKeyHeader))
	record, replay, err := a.payflow.InitiatePayment(c.Request.Context(), req)
	if err != nil {
		abortWithError(c, err)
		return
	}

	status := http.StatusCreated
	if replay {
		status = http.StatusOK
	}
	c.JSON(status, payflow.InitiateResult{Payment: record, IsIdempotentReplay: replay})
}

func (a Api) GetPayment(c *gin.Context) {
	id, passed := c.Params.Get("id")
	if !passed {
		c.JSON(http.StatusBadRequest, apierror.NewAPIError(apierror.ErrBadRequest, "id is required. pass id in the route /:id", nil))
		return
	}

	record, err := a.payflow.GetPayment(c.Request.Context(), id)
	if err != nil {
		abortWithError(c, err)
		return
	}
	if record == nil {
		c.JSON(http.StatusNotFound, apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("payment with ID '%s' not found", id), nil))
		return
	}
	c.JSON(http.StatusOK, record)
}

func (a Api) GetAllPayments(c *gin.Context) {
	records, err := a.payflow.ListPayments(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, records)
}

func (a Api) ResetState(c *gin.Context) {
	if err := a.payflow.ResetAll(c.Request.Context()); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "payflow state reset"})
}

// RecoverSettlements settles payments stuck in INITIATED for longer than the
// threshold query parameter (a Go duration, default 1m).
func (a Api) RecoverSettlements(c *gin.Context) {
	threshold := time.Minute
	if raw := c.Query("threshold"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, apierror.NewAPIError(apierror.ErrBadRequest, "threshold must be a duration such as 30s", err.Error()))
			return
		}
		threshold = parsed
	}

	recovered, err := a.payflow.RecoverStuckSettlements(c.Request.Context(), threshold)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"recovered": recovered})
}
