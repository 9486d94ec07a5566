// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dayplan Contributors

//go:build tools

// Package main pins the ginkgo CLI used to run test/integration suites.
package main

import (
	_ "github.com/onsi/ginkgo/v2/ginkgo"
)
