package local

import (
	"context"
	"fmt"

	"github.com/buildbuildio/mosaic/store"
)

const userTypeName = "user"

func userResolvers(provider UserProvider, exposePasswords bool) resolverTable {
	return resolverTable{
		{Type: "Query", Field: "user_count"}: func(ctx context.Context, _ ResolveParams) (interface{}, error) {
			return provider.CountUsers(ctx)
		},
		{Type: "Query", Field: "users"}: func(ctx context.Context, _ ResolveParams) (interface{}, error) {
			users, err := provider.ListUsers(ctx)
			if err != nil {
				return nil, err
			}

			res := make([]interface{}, len(users))
			for i, u := range users {
				res[i] = u
			}
			return res, nil
		},
		{Type: userTypeName, Field: "email"}: func(_ context.Context, p ResolveParams) (interface{}, error) {
			u, err := sourceUser(p)
			if err != nil {
				return nil, err
			}
			return u.Email, nil
		},
		{Type: userTypeName, Field: "password"}: func(_ context.Context, p ResolveParams) (interface{}, error) {
			if !exposePasswords {
				return nil, nil
			}
			u, err := sourceUser(p)
			if err != nil {
				return nil, err
			}
			return u.Password, nil
		},
	}
}

func sourceUser(p ResolveParams) (store.User, error) {
	u, ok := p.Source.(store.User)
	if !ok {
		return store.User{}, fmt.Errorf("unexpected source %T for %s", p.Source, userTypeName)
	}
	return u, nil
}
