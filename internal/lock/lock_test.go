/*
Copyright 2024 Blnk Finance Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package redlock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
)

func TestLocker_Lock_Success(t *testing.T) {
	db, mock := redismock.NewClientMock()
	locker := NewLocker(db, "conciliacion:lock:ana", "run_1")

	mock.ExpectSetNX("conciliacion:lock:ana", "run_1", 5*time.Minute).SetVal(true)

	err := locker.Lock(context.Background(), 5*time.Minute)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLocker_Lock_Held(t *testing.T) {
	db, mock := redismock.NewClientMock()
	locker := NewLocker(db, "conciliacion:lock:ana", "run_2")

	mock.ExpectSetNX("conciliacion:lock:ana", "run_2", 5*time.Minute).SetVal(false)

	err := locker.Lock(context.Background(), 5*time.Minute)
	assert.ErrorIs(t, err, ErrLockHeld)
	assert.EqualError(t, err, "lock is already held: conciliacion:lock:ana")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLocker_Lock_RedisError(t *testing.T) {
	db, mock := redismock.NewClientMock()
	locker := NewLocker(db, "conciliacion:lock:ana", "run_3")

	mock.ExpectSetNX("conciliacion:lock:ana", "run_3", time.Minute).SetErr(errors.New("connection refused"))

	err := locker.Lock(context.Background(), time.Minute)
	assert.EqualError(t, err, "connection refused")
	assert.False(t, errors.Is(err, ErrLockHeld))
}

func TestLocker_Unlock_Success(t *testing.T) {
	db, mock := redismock.NewClientMock()
	locker := NewLocker(db, "conciliacion:lock:ana", "run_1")

	mock.ExpectEval(unlockScript, []string{"conciliacion:lock:ana"}, "run_1").SetVal(int64(1))

	err := locker.Unlock(context.Background())
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLocker_Unlock_NotHolder(t *testing.T) {
	db, mock := redismock.NewClientMock()
	locker := NewLocker(db, "conciliacion:lock:ana", "run_1")

	// Another run holds the key, or it expired.
	mock.ExpectEval(unlockScript, []string{"conciliacion:lock:ana"}, "run_1").SetVal(int64(0))

	err := locker.Unlock(context.Background())
	assert.EqualError(t, err, "unlock failed, either lock expired or you're not the lock holder for key conciliacion:lock:ana")
	assert.NoError(t, mock.ExpectationsWereMet())
}
