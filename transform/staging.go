//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Copyright (C) 2025 Aaron Mathis aaron.mathis@gmail.com
//
// This file is part of TelcoETL.
//
// TelcoETL is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// TelcoETL is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with TelcoETL. If not, see https://www.gnu.org/licenses/.


package transform

import (
	"context"

	"go.uber.org/zap"

	"github.com/aaronlmathis/telcoetl/core"
)

// Column names in the raw telco churn extract and the staged table.
const (
	ColumnCustomerID   = "customerID"
	ColumnTotalCharges = "TotalCharges"
	StagedCustomerID   = "customer_id"
)

type stageOptions struct {
	policy BlankPolicy
	log    *zap.Logger
}

// StageOption configures StageTelcoCustomers.
type StageOption func(*stageOptions)

// WithBlankPolicy sets how blank TotalCharges cells are handled. The default is BlankAsZero.
func WithBlankPolicy(p BlankPolicy) StageOption {
	return func(o *stageOptions) { o.policy = p }
}

// WithLogger sets the logger used for the staging summary.
func WithLogger(log *zap.Logger) StageOption {
	return func(o *stageOptions) {
		if log != nil {
			o.log = log
		}
	}
}

// TelcoStaging returns the staging chain for the telco customer extract.
func TelcoStaging(policy BlankPolicy) core.DatasetTransformer {
	return Chain(
		RequireColumns(ColumnCustomerID, ColumnTotalCharges),
		ToFloat(ColumnTotalCharges, policy),
		Rename(ColumnCustomerID, StagedCustomerID),
	)
}

// StageTelcoCustomers coerces TotalCharges to float64 and renames customerID to
// customer_id. Zero-tenure customers carry a blank TotalCharges in the raw data;
// those cells are handled by the blank policy. ds is not modified.
func StageTelcoCustomers(ctx context.Context, ds *core.Dataset, opts ...StageOption) (*core.Dataset, error) {
	o := stageOptions{policy: BlankAsZero, log: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}

	blanks := 0
	if values, ok := ds.ColumnValues(ColumnTotalCharges); ok {
		for _, v := range values {
			if IsBlank(v) {
				blanks++
			}
		}
	}

	staged, err := TelcoStaging(o.policy).Transform(ctx, ds)
	if err != nil {
		return nil, err
	}

	o.log.Info("staging complete",
		zap.Int("rows", staged.NumRows()),
		zap.Int("blank_total_charges", blanks),
		zap.Stringer("blank_policy", o.policy),
	)
	return staged, nil
}
