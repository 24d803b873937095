// Package services holds contracts shared by the external tool clients:
// the failure classification sentinels used across the pipeline and the
// context annotations that feed structured logging.
package services
