package repository

import (
	"errors"
	"fmt"
	"proctor_backend/internal/util"

	"gorm.io/gorm"
)

// notFound 将 gorm 的记录不存在转换为业务错误
func notFound(err error, format string, args ...interface{}) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf(format+": %w", append(args, util.ErrNotFound)...)
	}
	return err
}
