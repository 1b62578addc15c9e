/*
 * Copyright 2025 Sen Wang
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package storage

import (
	"time"

	"gorm.io/gorm"
)

// dbMessage is the gorm model backing the messages table. Unlike the
// public types.Message, rows are keyed by an internal surrogate ID and
// the message UUID is a uniquely-indexed column.
type dbMessage struct {
	ID                uint      `gorm:"primarykey"`
	MessageID         string    `gorm:"type:uuid;uniqueIndex;not null"`
	SubscriptionKey   string    `gorm:"size:255;index;not null"`
	Content           string    `gorm:"type:text;not null"`
	Recipient         string    `gorm:"size:100;not null"`
	ChannelType       string    `gorm:"size:10;not null"`
	Status            string    `gorm:"size:20;not null;default:'Queued';index"`
	ExternalMessageID string    `gorm:"size:255"`
	ErrorMessage      string    `gorm:"type:text"`
	RetryCount        int       `gorm:"not null;default:0"`
	CreatedAt         time.Time `gorm:"type:timestamptz;not null"`
	UpdatedAt         time.Time `gorm:"type:timestamptz;not null"`
}

func (dbMessage) TableName() string {
	return "messages"
}

// BeforeCreate stamps CreatedAt/UpdatedAt when the caller left them zero.
func (m *dbMessage) BeforeCreate(tx *gorm.DB) error {
	now := time.Now().UTC()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	if m.UpdatedAt.IsZero() {
		m.UpdatedAt = now
	}
	return nil
}
