// Package mocks provides shared test doubles for the store and auth
// interfaces.
//
// Store mocks are built on testify/mock so tests can set expectations per
// call and assert them afterwards:
//
//	users := new(mocks.UserStore)
//	users.On("GetByID", mock.Anything, id).Return(user, nil)
//	...
//	users.AssertExpectations(t)
//
// The JWT and password mocks use function fields with default values, which
// keeps the common success path a one-liner.
package mocks
