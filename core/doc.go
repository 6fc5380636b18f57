// Package core contains the webhook domain: configuration, request
// building, fan-out dispatch, delivery recording and redelivery. Storage and
// HTTP transport live in adapter packages that depend on core, never the
// other way round.
package core
