package registry

import (
	"errors"
	"fmt"

	"portseal/internal/domain"
)

var (
	errNoPrincipal = fmt.Errorf("%w: principal", domain.ErrMalformedBundle)
	errClaimRace   = errors.New("registry: one-time pre-key claimed concurrently")
)
