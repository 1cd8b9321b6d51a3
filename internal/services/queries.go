package services

const mediaFieldsFragment = `
fragment mediaFields on Media {
  id
  title {
    english
    romaji
    native
  }
  coverImage {
    large
  }
  bannerImage
  genres
  episodes
  status
  trailer {
    id
    site
  }
  averageScore
  siteUrl
  description
}
`

// homeQuery fetches both homepage rankings in one round trip.
const homeQuery = `
query ($perPage: Int) {
  trending: Page(page: 1, perPage: $perPage) {
    media(sort: TRENDING_DESC, type: ANIME) {
      ...mediaFields
    }
  }
  popular: Page(page: 1, perPage: $perPage) {
    media(sort: POPULARITY_DESC, type: ANIME, status: RELEASING) {
      ...mediaFields
    }
  }
}
` + mediaFieldsFragment

// detailsQuery returns AniList's best match for a free-text title.
const detailsQuery = `
query ($search: String) {
  Media(search: $search, type: ANIME) {
    ...mediaFields
  }
}
` + mediaFieldsFragment
