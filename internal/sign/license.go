package sign

import (
	"errors"
	"fmt"

	"github.com/unidoc/unipdf/v3/common/license"
)

// SetLicenseKey registers the unidoc metered license key. The PDF
// writer refuses to produce output without one, so this must run at
// startup before the first stamp.
func SetLicenseKey(key string) error {
	if key == "" {
		return errors.New("unidoc license key cannot be empty")
	}
	if err := license.SetMeteredKey(key); err != nil {
		return fmt.Errorf("set unidoc license key: %w", err)
	}
	return nil
}
