//
//  Copyright © Manetu Inc. All rights reserved.
//

package common

import (
	"errors"
	"io/fs"

	"github.com/joho/godotenv"
)

// LoadEnv populates the process environment from dotenv files. Variables
// already set win. With no files, a .env in the working directory is read if
// it exists.
func LoadEnv(files []string) error {
	if len(files) == 0 {
		err := godotenv.Load()
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	return godotenv.Load(files...)
}
