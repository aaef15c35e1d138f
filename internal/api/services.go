package api

// Service accessors group Client operations by resource.
// Each service embeds *Client, so they share the same session.

type AppsService struct{ *Client }

type ViewsService struct{ *Client }

type RecordsService struct{ *Client }

type FilesService struct{ *Client }

type UsersService struct{ *Client }

func (c *Client) Apps() AppsService {
	return AppsService{c}
}

func (c *Client) Views() ViewsService {
	return ViewsService{c}
}

func (c *Client) Records() RecordsService {
	return RecordsService{c}
}

func (c *Client) Files() FilesService {
	return FilesService{c}
}

func (c *Client) Users() UsersService {
	return UsersService{c}
}
