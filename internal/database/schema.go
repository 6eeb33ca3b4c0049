package database

import (
	"context"
	"database/sql"
	"fmt"
)

// Schema is the DDL for the four booking tables, in dependency order.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS flights (
  id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
  flight_number VARCHAR(16) NOT NULL,
  origin VARCHAR(64) NOT NULL,
  destination VARCHAR(64) NOT NULL,
  departure_time DATETIME NOT NULL,
  arrival_time DATETIME NOT NULL,
  price DECIMAL(10,2) NOT NULL,
  total_seats INT NOT NULL,
  available_seats INT NOT NULL,
  created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
  updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
  PRIMARY KEY (id),
  UNIQUE KEY uq_flights_number (flight_number),
  KEY idx_flights_route (origin, destination, departure_time)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS reservations (
  id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
  booking_reference VARCHAR(16) NOT NULL,
  passenger_name VARCHAR(255) NOT NULL,
  passenger_email VARCHAR(255) NOT NULL,
  passenger_phone VARCHAR(32) NOT NULL,
  flight_id BIGINT UNSIGNED NOT NULL,
  booking_date DATETIME NOT NULL,
  total_amount DECIMAL(10,2) NOT NULL,
  preferred_seat_class VARCHAR(20) NOT NULL,
  status VARCHAR(16) NOT NULL,
  created_by VARCHAR(255) NULL,
  created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
  updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
  PRIMARY KEY (id),
  UNIQUE KEY uq_reservations_reference (booking_reference),
  KEY idx_reservations_email (passenger_email),
  CONSTRAINT fk_reservations_flight FOREIGN KEY (flight_id) REFERENCES flights (id)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS seats (
  id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
  flight_id BIGINT UNSIGNED NOT NULL,
  seat_number VARCHAR(8) NOT NULL,
  seat_class VARCHAR(20) NOT NULL,
  status VARCHAR(16) NOT NULL,
  reservation_id BIGINT UNSIGNED NULL,
  created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
  updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
  PRIMARY KEY (id),
  UNIQUE KEY uq_seats_flight_number (flight_id, seat_number),
  KEY idx_seats_reservation (reservation_id),
  KEY idx_seats_flight_status (flight_id, status),
  CONSTRAINT fk_seats_flight FOREIGN KEY (flight_id) REFERENCES flights (id),
  CONSTRAINT fk_seats_reservation FOREIGN KEY (reservation_id) REFERENCES reservations (id)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS payments (
  id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
  reservation_id BIGINT UNSIGNED NOT NULL,
  transaction_id VARCHAR(64) NOT NULL,
  payment_method VARCHAR(20) NOT NULL,
  amount DECIMAL(10,2) NOT NULL,
  status VARCHAR(16) NOT NULL,
  payment_date DATETIME NOT NULL,
  processed_date DATETIME NULL,
  card_last_four CHAR(4) NOT NULL,
  card_holder_name VARCHAR(255) NOT NULL,
  gateway_response VARCHAR(255) NOT NULL,
  failure_reason VARCHAR(255) NULL,
  original_transaction_id VARCHAR(64) NULL,
  PRIMARY KEY (id),
  UNIQUE KEY uq_payments_transaction (transaction_id),
  KEY idx_payments_reservation (reservation_id),
  CONSTRAINT fk_payments_reservation FOREIGN KEY (reservation_id) REFERENCES reservations (id)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

// Migrate creates any missing table.  Existing tables are left alone.
func Migrate(ctx context.Context, db *sql.DB) error {
	for i, stmt := range Schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate step %d: %w", i+1, err)
		}
	}
	return nil
}
