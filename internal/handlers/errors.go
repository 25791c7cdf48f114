package handlers

import "errors"

var errProviderUnconfigured = errors.New("handlers: no provider fetcher configured")
