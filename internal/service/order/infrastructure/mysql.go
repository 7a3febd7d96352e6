// internal/service/order/infrastructure/mysql.go
package infrastructure

import (
	"time"

	pkgerrors "github.com/pkg/errors"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	accountinfra "takeout/internal/service/account/infrastructure"
	cartdomain "takeout/internal/service/cart/domain"
	"takeout/internal/service/order/domain"
)

// NewDB 建立 MySQL 连接并迁移本服务的表结构。
func NewDB(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, pkgerrors.Wrap(err, "connect mysql")
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(50)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(
		&domain.Order{},
		&domain.OrderLine{},
		&cartdomain.CartLine{},
		&AddressModel{},
		&accountinfra.AccountModel{},
	); err != nil {
		return nil, pkgerrors.Wrap(err, "auto migrate")
	}
	return db, nil
}
